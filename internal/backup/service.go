package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aristath/portfolio/internal/database"
	"github.com/aristath/portfolio/internal/utils"
	"github.com/rs/zerolog"
)

const archivePrefix = "portfolio-backup-"

// Metadata describes one archive's contents, written alongside the
// databases inside the tar.gz.
type Metadata struct {
	Timestamp time.Time          `json:"timestamp"`
	Databases []DatabaseMetadata `json:"databases"`
}

// DatabaseMetadata is one snapshot's size and checksum.
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// Info describes a stored archive, as returned by List.
type Info struct {
	Filename  string
	Timestamp time.Time
	SizeBytes int64
}

// objectStore is the subset of S3Client the service depends on, kept as an
// interface so rotation/listing logic can be tested without the network.
type objectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64) error
	List(ctx context.Context, prefix string) ([]Object, error)
	Delete(ctx context.Context, key string) error
}

// Service snapshots market.db and ledger.db, archives them, and uploads
// the archive to an S3-compatible bucket. Grounded on the orchestration
// shape of the teacher's R2 backup service (tar.gz + sha256 + metadata +
// retention rotation), rewritten against a concretely wired S3 client.
type Service struct {
	s3            objectStore
	databases     []*database.DB // market, ledger — never cache (ephemeral, not worth backing up)
	stagingDir    string
	retentionDays int
	log           zerolog.Logger
}

// New builds a Service over the given databases (typically market and
// ledger). stagingDir must be writable; it is created and cleaned per run.
func New(s3Client objectStore, databases []*database.DB, stagingDir string, retentionDays int, log zerolog.Logger) *Service {
	return &Service{
		s3:            s3Client,
		databases:     databases,
		stagingDir:    stagingDir,
		retentionDays: retentionDays,
		log:           log.With().Str("component", "backup_service").Logger(),
	}
}

// Backup snapshots every configured database, archives them with a
// metadata sidecar, and uploads the archive. Each database is checkpointed
// before copying so the snapshot reflects all committed writes.
func (s *Service) Backup(ctx context.Context) error {
	timer := utils.NewTimer("backup", s.log)
	if err := os.MkdirAll(s.stagingDir, 0755); err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(s.stagingDir)

	metadata := Metadata{Timestamp: time.Now().UTC()}
	var snapshotPaths []string

	for _, db := range s.databases {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			s.log.Warn().Err(err).Str("database", db.Name()).Msg("wal checkpoint failed before snapshot")
		}

		snapshotPath := filepath.Join(s.stagingDir, db.Name()+".db")
		if err := copyFile(db.Path(), snapshotPath); err != nil {
			return fmt.Errorf("snapshot %s: %w", db.Name(), err)
		}

		info, err := os.Stat(snapshotPath)
		if err != nil {
			return fmt.Errorf("stat snapshot %s: %w", db.Name(), err)
		}
		checksum, err := checksumFile(snapshotPath)
		if err != nil {
			return fmt.Errorf("checksum snapshot %s: %w", db.Name(), err)
		}

		metadata.Databases = append(metadata.Databases, DatabaseMetadata{
			Name:      db.Name(),
			Filename:  db.Name() + ".db",
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
		snapshotPaths = append(snapshotPaths, snapshotPath)
	}

	metadataPath := filepath.Join(s.stagingDir, "backup-metadata.json")
	if err := writeMetadata(metadataPath, metadata); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	archiveName := fmt.Sprintf("%s%s.tar.gz", archivePrefix, time.Now().Format("2006-01-02-150405"))
	archivePath := filepath.Join(s.stagingDir, archiveName)
	if err := createArchive(archivePath, append(snapshotPaths, metadataPath)); err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	info, err := archiveFile.Stat()
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}

	if err := s.s3.Upload(ctx, archiveName, archiveFile, info.Size()); err != nil {
		return err
	}

	timer.StopWithContext(map[string]interface{}{
		"archive":    archiveName,
		"size_bytes": info.Size(),
	})
	return nil
}

// List returns every stored archive, newest first.
func (s *Service) List(ctx context.Context) ([]Info, error) {
	objects, err := s.s3.List(ctx, archivePrefix)
	if err != nil {
		return nil, err
	}

	backups := make([]Info, 0, len(objects))
	for _, obj := range objects {
		ts := strings.TrimSuffix(strings.TrimPrefix(obj.Key, archivePrefix), ".tar.gz")
		timestamp, err := time.Parse("2006-01-02-150405", ts)
		if err != nil {
			continue
		}
		backups = append(backups, Info{Filename: obj.Key, Timestamp: timestamp, SizeBytes: obj.Size})
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].Timestamp.After(backups[j].Timestamp) })
	return backups, nil
}

const minBackupsToKeep = 3

// Rotate deletes archives older than retentionDays, always keeping at
// least minBackupsToKeep regardless of age. retentionDays <= 0 disables
// rotation.
func (s *Service) Rotate(ctx context.Context) error {
	if s.retentionDays <= 0 {
		return nil
	}
	backups, err := s.List(ctx)
	if err != nil {
		return fmt.Errorf("list backups for rotation: %w", err)
	}
	if len(backups) <= minBackupsToKeep {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	deleted := 0
	for i, b := range backups {
		if i < minBackupsToKeep || !b.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.s3.Delete(ctx, b.Filename); err != nil {
			s.log.Error().Err(err).Str("filename", b.Filename).Msg("failed to delete old backup")
			continue
		}
		deleted++
	}
	s.log.Info().Int("deleted", deleted).Int("remaining", len(backups)-deleted).Msg("backup rotation complete")
	return nil
}

// Name implements scheduler.Job.
func (s *Service) Name() string { return "backup" }

// Run implements scheduler.Job: backs up, then rotates, using a background
// context since scheduled jobs have no caller-supplied one.
func (s *Service) Run() error {
	ctx := context.Background()
	if err := s.Backup(ctx); err != nil {
		return err
	}
	return s.Rotate(ctx)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

func writeMetadata(path string, metadata Metadata) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(metadata)
}

func createArchive(archivePath string, files []string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer archiveFile.Close()

	gz := gzip.NewWriter(archiveFile)
	defer gz.Close()

	tw := tar.NewWriter(gz)
	defer tw.Close()

	for _, path := range files {
		if err := addFileToArchive(tw, path); err != nil {
			return fmt.Errorf("add %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

func addFileToArchive(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    filepath.Base(path),
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}
