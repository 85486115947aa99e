// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package artifact stores compiled partitions in the sparse binary layout,
// either in a local directory or under a gs:// prefix.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/AleutianAI/AleutianSolver/pkg/validation"
	"github.com/AleutianAI/AleutianSolver/services/solver/sparse"
)

// Extension is appended to every artifact name.
const Extension = ".spg"

// ErrNotFound is returned by Get for a missing artifact.
var ErrNotFound = errors.New("artifact not found")

// Store reads and writes named partitions.
type Store interface {
	// Put writes p and returns its location.
	Put(ctx context.Context, name string, p *sparse.Partition) (string, error)
	Get(ctx context.Context, name string) (*sparse.Partition, error)
	Close() error
}

// Open returns a GCS store for "gs://bucket/prefix" locations and a local
// store otherwise. credentialsFile is only used for GCS; empty means
// application default credentials.
func Open(ctx context.Context, location, credentialsFile string) (Store, error) {
	if rest, ok := strings.CutPrefix(location, "gs://"); ok {
		bucket, prefix, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return nil, fmt.Errorf("artifact location %q has no bucket", location)
		}
		return NewGCS(ctx, bucket, prefix, credentialsFile)
	}
	return NewLocal(location)
}

func checkName(name string) error {
	return validation.ValidateArtifactName(name)
}

// =============================================================================
// Local directory
// =============================================================================

// Local stores artifacts in a directory.
type Local struct {
	dir string
}

// NewLocal creates dir if needed.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		return nil, errors.New("artifact directory is required")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	return &Local{dir: dir}, nil
}

// Put implements Store.
func (l *Local) Put(ctx context.Context, name string, p *sparse.Partition) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dst := filepath.Join(l.dir, name+Extension)
	if err := sparse.WriteFile(dst, p); err != nil {
		return "", err
	}
	return dst, nil
}

// Get implements Store.
func (l *Local) Get(ctx context.Context, name string) (*sparse.Partition, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src := filepath.Join(l.dir, name+Extension)
	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, src)
	}
	return sparse.ReadFile(src)
}

// Close implements Store.
func (l *Local) Close() error { return nil }

// =============================================================================
// Google Cloud Storage
// =============================================================================

// GCS stores artifacts as objects under a bucket prefix.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCS connects to Cloud Storage.
func NewGCS(ctx context.Context, bucket, prefix, credentialsFile string) (*GCS, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); err != nil {
			return nil, fmt.Errorf("service account key not found at %s: %w", credentialsFile, err)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func (g *GCS) object(name string) string {
	return path.Join(g.prefix, name+Extension)
}

// Put implements Store.
func (g *GCS) Put(ctx context.Context, name string, p *sparse.Partition) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	key := g.object(name)
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	w.CacheControl = "no-cache, no-store, must-revalidate"

	if err := sparse.WriteBinary(w, p); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload gs://%s/%s: %w", g.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close GCS writer for gs://%s/%s: %w", g.bucket, key, err)
	}
	location := fmt.Sprintf("gs://%s/%s", g.bucket, key)
	slog.Info("artifact uploaded", slog.String("location", location))
	return location, nil
}

// Get implements Store.
func (g *GCS) Get(ctx context.Context, name string) (*sparse.Partition, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	key := g.object(name)
	r, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: gs://%s/%s", ErrNotFound, g.bucket, key)
	}
	if err != nil {
		return nil, fmt.Errorf("open gs://%s/%s: %w", g.bucket, key, err)
	}
	defer r.Close()
	return sparse.ReadBinary(r)
}

// Close implements Store.
func (g *GCS) Close() error { return g.client.Close() }
