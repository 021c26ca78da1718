// Package backup takes consistent snapshots of the rota database, optionally
// encrypts them with a passphrase, and keeps them in a local directory or an
// S3-compatible bucket.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	_ "modernc.org/sqlite"
)

const (
	namePrefix  = "rota-"
	timeLayout  = "20060102T150405Z"
	defaultKeep = 7
)

// ErrNotFound is returned when the named backup does not exist.
var ErrNotFound = errors.New("backup not found")

// S3Config describes an S3-compatible bucket.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type Config struct {
	// Dir holds local backups when S3 is not configured.
	Dir        string
	Passphrase string
	// Keep is how many backups survive pruning; 0 means the default.
	Keep int
	S3   S3Config
}

// objectStore is the part of the S3 client the manager uses.
type objectStore interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Result describes one stored backup.
type Result struct {
	Name      string `json:"name"`
	Location  string `json:"location"`
	Size      int64  `json:"size"`
	Encrypted bool   `json:"encrypted"`
	Pruned    int    `json:"pruned"`
}

type Manager struct {
	cfg    Config
	s3     objectStore
	logger *slog.Logger
	now    func() time.Time
}

func NewManager(cfg Config, logger *slog.Logger) *Manager {
	if cfg.Keep <= 0 {
		cfg.Keep = defaultKeep
	}
	if cfg.Dir == "" {
		cfg.Dir = "backups"
	}
	m := &Manager{cfg: cfg, logger: logger.With("component", "backup"), now: time.Now}
	if cfg.S3.Enabled() {
		m.s3 = newS3Client(cfg.S3)
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	opts := s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Run snapshots db, seals it when a passphrase is configured, stores it and
// prunes older backups beyond Keep.
func (m *Manager) Run(ctx context.Context, db *sql.DB) (Result, error) {
	tmpDir, err := os.MkdirTemp("", "rota-backup-")
	if err != nil {
		return Result{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	snapshot := filepath.Join(tmpDir, "snapshot.db")
	if err := Snapshot(ctx, db, snapshot); err != nil {
		return Result{}, err
	}
	data, err := os.ReadFile(snapshot)
	if err != nil {
		return Result{}, fmt.Errorf("read snapshot: %w", err)
	}

	res := Result{Name: namePrefix + m.now().UTC().Format(timeLayout) + ".db"}
	if m.cfg.Passphrase != "" {
		if data, err = Seal(data, m.cfg.Passphrase); err != nil {
			return Result{}, err
		}
		res.Name += ".enc"
		res.Encrypted = true
	}
	res.Size = int64(len(data))

	if m.s3 != nil {
		_, err = m.s3.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(m.cfg.S3.Bucket),
			Key:           aws.String(res.Name),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(res.Size),
		})
		if err != nil {
			return Result{}, fmt.Errorf("upload to s3: %w", err)
		}
		res.Location = "s3://" + m.cfg.S3.Bucket + "/" + res.Name
	} else {
		if err := os.MkdirAll(m.cfg.Dir, 0o700); err != nil {
			return Result{}, fmt.Errorf("create backup dir: %w", err)
		}
		res.Location = filepath.Join(m.cfg.Dir, res.Name)
		if err := os.WriteFile(res.Location, data, 0o600); err != nil {
			return Result{}, fmt.Errorf("write backup: %w", err)
		}
	}

	pruned, err := m.prune(ctx)
	if err != nil {
		m.logger.Warn("prune backups", "error", err)
	}
	res.Pruned = pruned

	m.logger.Info("backup stored", "location", res.Location, "size", res.Size, "encrypted", res.Encrypted)
	return res, nil
}

// List returns stored backup names, oldest first.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	var names []string
	if m.s3 != nil {
		var token *string
		for {
			out, err := m.s3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
				Bucket:            aws.String(m.cfg.S3.Bucket),
				Prefix:            aws.String(namePrefix),
				ContinuationToken: token,
			})
			if err != nil {
				return nil, fmt.Errorf("list s3 objects: %w", err)
			}
			for _, obj := range out.Contents {
				names = append(names, aws.ToString(obj.Key))
			}
			if !aws.ToBool(out.IsTruncated) {
				break
			}
			token = out.NextContinuationToken
		}
	} else {
		entries, err := os.ReadDir(m.cfg.Dir)
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read backup dir: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasPrefix(e.Name(), namePrefix) {
				names = append(names, e.Name())
			}
		}
	}
	// Names embed a sortable UTC timestamp.
	sort.Strings(names)
	return names, nil
}

func (m *Manager) prune(ctx context.Context) (int, error) {
	names, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(names) <= m.cfg.Keep {
		return 0, nil
	}
	stale := names[:len(names)-m.cfg.Keep]
	for _, name := range stale {
		if m.s3 != nil {
			_, err = m.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(m.cfg.S3.Bucket),
				Key:    aws.String(name),
			})
		} else {
			err = os.Remove(filepath.Join(m.cfg.Dir, name))
		}
		if err != nil {
			return 0, fmt.Errorf("delete %s: %w", name, err)
		}
	}
	return len(stale), nil
}

func (m *Manager) fetch(ctx context.Context, name string) ([]byte, error) {
	if m.s3 != nil {
		out, err := m.s3.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(m.cfg.S3.Bucket),
			Key:    aws.String(name),
		})
		var missing *s3types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", name, err)
		}
		defer out.Body.Close()
		return io.ReadAll(out.Body)
	}

	path := name
	if !strings.ContainsRune(name, os.PathSeparator) {
		path = filepath.Join(m.cfg.Dir, name)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// Restore writes the named backup to dst after checking its integrity. dst
// must not be open by a running server. An existing dst is only replaced
// when overwrite is set.
func (m *Manager) Restore(ctx context.Context, name, dst string, overwrite bool) error {
	if _, err := os.Stat(dst); err == nil && !overwrite {
		return fmt.Errorf("%s already exists", dst)
	}

	data, err := m.fetch(ctx, name)
	if err != nil {
		return err
	}
	if IsSealed(data) {
		if data, err = Open(data, m.cfg.Passphrase); err != nil {
			return err
		}
	}

	tmp := dst + ".restore"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write restored db: %w", err)
	}
	defer os.Remove(tmp)

	if err := checkIntegrity(ctx, tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	os.Remove(dst + "-wal")
	os.Remove(dst + "-shm")

	m.logger.Info("backup restored", "name", name, "path", dst)
	return nil
}

// Snapshot writes a consistent copy of db to path.
func Snapshot(ctx context.Context, db *sql.DB, path string) error {
	quoted := "'" + strings.ReplaceAll(path, "'", "''") + "'"
	if _, err := db.ExecContext(ctx, "VACUUM INTO "+quoted); err != nil {
		return fmt.Errorf("snapshot database: %w", err)
	}
	return nil
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	var n int
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM groups").Scan(&n); err != nil {
		return fmt.Errorf("not a rota database: %w", err)
	}
	return nil
}
