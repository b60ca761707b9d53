// Package publish uploads built OTA bundle zips and their OTA manifest to
// an object store.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/smartguitar/sgc/internal/integrity"
	"github.com/smartguitar/sgc/internal/manifest"
	"github.com/smartguitar/sgc/internal/verify"
	"github.com/smartguitar/sgc/pkg/errclass"
	"github.com/smartguitar/sgc/pkg/logging"
	"github.com/smartguitar/sgc/pkg/metrics"
)

// ObjectStore stores objects by bucket and key.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, digest integrity.Digest) error
}

// Options configures a Publisher.
type Options struct {
	Bucket string
	// Prefix is prepended to every key, separated by "/".
	Prefix string
	// Verifier, when set, checks every zip before it is uploaded. A zip
	// that fails verification stops the publish.
	Verifier *verify.Verifier
	Metrics  *metrics.Registry
}

// Object is one uploaded object.
type Object struct {
	Key    string           `json:"key"`
	Source string           `json:"source"`
	Size   int64            `json:"size"`
	SHA256 integrity.Digest `json:"sha256"`
}

// Report lists what a publish uploaded, in upload order.
type Report struct {
	Bucket  string   `json:"bucket"`
	Objects []Object `json:"objects"`
}

// Publisher uploads bundles described by an OTA manifest.
type Publisher struct {
	store ObjectStore
	opts  Options
	log   *logging.Logger
}

// NewPublisher creates a publisher writing to store.
func NewPublisher(store ObjectStore, opts Options) (*Publisher, error) {
	if store == nil {
		return nil, errors.New("publish: nil object store")
	}
	if opts.Bucket == "" {
		return nil, errors.New("publish: bucket is required")
	}
	opts.Prefix = strings.Trim(opts.Prefix, "/")
	return &Publisher{store: store, opts: opts, log: logging.Component("publish")}, nil
}

// Publish uploads every zip listed in the OTA manifest at manifestPath and
// then the manifest itself, so that a consumer never sees a manifest whose
// archives are not there yet.
func (p *Publisher) Publish(ctx context.Context, manifestPath string) (*Report, error) {
	m, err := manifest.ReadOTA(manifestPath)
	if err != nil {
		return nil, err
	}

	var zips []string
	for _, o := range m.Outputs {
		if o.ZipPath != nil {
			zips = append(zips, *o.ZipPath)
		}
	}
	if len(zips) == 0 {
		return nil, errclass.ErrFileNotFound.WithMessagef("%s lists no zip archives (build with --zip)", manifestPath)
	}

	// Check everything before the first upload.
	for _, z := range zips {
		if _, err := os.Stat(z); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, errclass.ErrFileNotFound.WithMessagef("bundle zip %s", z)
			}
			return nil, fmt.Errorf("stat %s: %w", z, err)
		}
		if p.opts.Verifier != nil {
			res, err := p.opts.Verifier.VerifyZip(ctx, z)
			if err != nil {
				return nil, err
			}
			if !res.OK {
				return nil, fmt.Errorf("refusing to publish %s: %w", z, res.Err())
			}
		}
	}

	report := &Report{Bucket: p.opts.Bucket}
	for _, z := range zips {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		obj, err := p.upload(ctx, z, p.key(filepath.Base(z)))
		if err != nil {
			return report, err
		}
		report.Objects = append(report.Objects, obj)
	}
	obj, err := p.upload(ctx, manifestPath, p.key(manifest.OTAFile))
	if err != nil {
		return report, err
	}
	report.Objects = append(report.Objects, obj)

	p.log.Info("publish finished", map[string]any{
		"bucket":  p.opts.Bucket,
		"objects": len(report.Objects),
	})
	return report, nil
}

func (p *Publisher) key(name string) string {
	if p.opts.Prefix == "" {
		return name
	}
	return path.Join(p.opts.Prefix, name)
}

func (p *Publisher) upload(ctx context.Context, src, key string) (Object, error) {
	digest, size, err := integrity.SumFile(src)
	if err != nil {
		return Object{}, err
	}
	f, err := os.Open(src)
	if err != nil {
		return Object{}, fmt.Errorf("open %s: %w", src, err)
	}
	defer f.Close()

	if err := p.store.PutObject(ctx, p.opts.Bucket, key, f, size, digest); err != nil {
		return Object{}, err
	}
	if p.opts.Metrics != nil {
		p.opts.Metrics.RecordPublish(size)
	}
	p.log.Debug("object uploaded", map[string]any{"key": key, "size": size})
	return Object{Key: key, Source: src, Size: size, SHA256: digest}, nil
}
