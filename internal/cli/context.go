package cli

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/smartguitar/sgc/internal/catalog"
	"github.com/smartguitar/sgc/internal/packager"
	"github.com/smartguitar/sgc/internal/signer"
	"github.com/smartguitar/sgc/pkg/color"
	"github.com/smartguitar/sgc/pkg/errclass"
)

func fmtErr(format string, args ...any) {
	// Colorize the error prefix
	prefix := "sgc: "
	if color.Enabled() {
		prefix = color.Error("sgc:") + " "
	}
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}

// loadRegistry returns the bundled dance pack registry.
func loadRegistry() (*catalog.Registry, error) {
	reg, err := catalog.Default()
	if err != nil {
		return nil, fmt.Errorf("load bundled dance packs: %w", err)
	}
	return reg, nil
}

// compressionLevel resolves --compression against the config default.
func compressionLevel(flag string) (packager.Level, error) {
	if flag == "" {
		flag = cfg.Compression
	}
	return packager.ParseLevel(flag)
}

// secretFlags is the --secret / --secret-file pair shared by every command
// that signs or checks signatures.
type secretFlags struct {
	inline string
	file   string
}

// AddFlags registers the flags on flagSet.
func (s *secretFlags) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&s.inline, "secret", "", "HMAC secret")
	flagSet.StringVar(&s.file, "secret-file", "", "file containing the HMAC secret (default from config)")
}

// signer returns the configured signer, or nil when no secret was given
// on the command line or in the config.
func (s *secretFlags) signer() (*signer.Signer, error) {
	if s.inline != "" && s.file != "" {
		return nil, errclass.ErrSecretInvalid.WithMessage("use only one of --secret and --secret-file")
	}
	file := s.file
	if s.inline == "" && file == "" {
		file = cfg.SecretFile
	}
	if s.inline == "" && file == "" {
		return nil, nil
	}
	secret, err := signer.LoadSecret(s.inline, file)
	if err != nil {
		return nil, err
	}
	return signer.New(secret)
}

// requireSigner is signer for commands that cannot run without a secret.
func (s *secretFlags) requireSigner() (*signer.Signer, error) {
	sg, err := s.signer()
	if err != nil {
		return nil, err
	}
	if sg == nil {
		return nil, errclass.ErrSecretInvalid.WithMessage("--secret or --secret-file required")
	}
	return sg, nil
}
