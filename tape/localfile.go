package tape

import "os"

// LocalFile is a PositionalFile backed by a local *os.File, the disk
// implementation standing in for the XRootD-backed tape resource of
// production, mirroring the original's S3ToTarfileDisk variant of
// S3ToTarfileStream.
type LocalFile struct {
	f *os.File
}

// OpenLocalFile opens path for read-write, creating it if necessary.
func OpenLocalFile(path string) (*LocalFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	return &LocalFile{f: f}, nil
}

func (l *LocalFile) Read(offset int64, size int) (Status, []byte) {
	buf := make([]byte, size)
	n, err := l.f.ReadAt(buf, offset)
	if err != nil && n == 0 {
		return StatusError, nil
	}
	return StatusOK, buf[:n]
}

func (l *LocalFile) Write(b []byte, offset int64, size int) (Status, int) {
	n, err := l.f.WriteAt(b[:size], offset)
	if err != nil {
		return StatusError, 0
	}
	return StatusOK, n
}

func (l *LocalFile) Seek(pos int64) {}

func (l *LocalFile) Tell() int64 { return 0 }

// Close releases the underlying file descriptor.
func (l *LocalFile) Close() error { return l.f.Close() }
