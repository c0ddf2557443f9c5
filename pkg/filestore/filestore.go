package filestore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/igolaizola/sunostudio/pkg/filestore/local"
	"github.com/igolaizola/sunostudio/pkg/filestore/s3"
)

type fs interface {
	Put(ctx context.Context, name string, r io.Reader, contentType string) error
	Get(ctx context.Context, name string, w io.Writer) error
	Exists(ctx context.Context, name string) (bool, error)
}

// Format is an audio file format.
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatWAV Format = "wav"
)

func (f Format) ContentType() string {
	if f == FormatWAV {
		return "audio/wav"
	}
	return "audio/mpeg"
}

// Store archives clip audio files.
type Store struct {
	fs fs
}

// New creates a file store. Connection strings are a directory for local
// and key:secret@bucket.region for s3.
func New(typ, conn string, debug bool) (*Store, error) {
	var fs fs
	switch typ {
	case "s3":
		split := strings.Split(conn, "@")
		if len(split) != 2 {
			return nil, fmt.Errorf("filestore: invalid s3 connection string %q", conn)
		}
		auth := strings.Split(split[0], ":")
		if len(auth) != 2 {
			return nil, fmt.Errorf("filestore: invalid s3 auth string %q", conn)
		}
		key := auth[0]
		secret := auth[1]
		loc := strings.Split(split[1], ".")
		if len(loc) != 2 {
			return nil, fmt.Errorf("filestore: invalid s3 location string %q", conn)
		}
		bucket := loc[0]
		region := loc[1]
		candidate, err := s3.New(key, secret, region, bucket, debug)
		if err != nil {
			return nil, fmt.Errorf("filestore: %w", err)
		}
		fs = candidate
	case "local":
		candidate, err := local.New(conn, debug)
		if err != nil {
			return nil, fmt.Errorf("filestore: %w", err)
		}
		fs = candidate
	default:
		return nil, fmt.Errorf("filestore: unknown file storage type %q", typ)
	}
	return &Store{fs: fs}, nil
}

// SetAudio stores the audio of a clip.
func (s *Store) SetAudio(ctx context.Context, r io.Reader, clipID string, f Format) error {
	return s.fs.Put(ctx, Name(clipID, f), r, f.ContentType())
}

// GetAudio writes the stored audio of a clip to w.
func (s *Store) GetAudio(ctx context.Context, w io.Writer, clipID string, f Format) error {
	return s.fs.Get(ctx, Name(clipID, f), w)
}

// HasAudio reports whether the audio of a clip is already stored.
func (s *Store) HasAudio(ctx context.Context, clipID string, f Format) (bool, error) {
	return s.fs.Exists(ctx, Name(clipID, f))
}

func Name(clipID string, f Format) string {
	return fmt.Sprintf("%s.%s", clipID, f)
}
