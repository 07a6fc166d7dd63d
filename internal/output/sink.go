package output

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/yaha/internal/domain"
	"github.com/phrazzld/yaha/internal/pipeline"
)

// ErrSinkClosed is returned when a FileSink is used after Commit or Abort.
var ErrSinkClosed = errors.New("output sink already closed")

// Paths names the files a FileSink publishes. StatsFile may be empty to
// skip stats.json.
type Paths struct {
	Dir            string
	GeneralFile    string
	RestrictedFile string
	StatsFile      string
}

func (p Paths) general() string    { return filepath.Join(p.Dir, p.GeneralFile) }
func (p Paths) restricted() string { return filepath.Join(p.Dir, p.RestrictedFile) }
func (p Paths) stats() string      { return filepath.Join(p.Dir, p.StatsFile) }

// FileSink writes the two hosts files and stats.json.
//
// Domains are streamed to temporary body files in the output directory.
// Commit prepends each file's header, fsyncs, and renames every output into
// place; Abort removes the temporary files. Headers need the run's
// statistics, which FileSink receives through pipeline.Summarizer.
type FileSink struct {
	paths   Paths
	sources []domain.SourceDescriptor
	now     time.Time

	mu         sync.Mutex
	general    *bodyFile
	restricted *bodyFile
	result     *pipeline.Result
	closed     bool
}

var (
	_ pipeline.Sink       = (*FileSink)(nil)
	_ pipeline.Summarizer = (*FileSink)(nil)
)

// NewFileSink prepares temporary files in paths.Dir, creating the directory
// if needed. now stamps the headers and stats.
func NewFileSink(paths Paths, sources []domain.SourceDescriptor, now time.Time) (*FileSink, error) {
	if paths.GeneralFile == "" || paths.RestrictedFile == "" {
		return nil, fmt.Errorf("%w: output file names are required", domain.ErrConfig)
	}
	if err := os.MkdirAll(paths.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	general, err := newBodyFile(paths.Dir, paths.GeneralFile)
	if err != nil {
		return nil, err
	}
	restricted, err := newBodyFile(paths.Dir, paths.RestrictedFile)
	if err != nil {
		general.discard()
		return nil, err
	}

	return &FileSink{
		paths:      paths,
		sources:    sources,
		now:        now.UTC(),
		general:    general,
		restricted: restricted,
	}, nil
}

// General appends d to the general hosts file.
func (s *FileSink) General(d string) error {
	return s.write(func() *bodyFile { return s.general }, d)
}

// Restricted appends d to the restricted hosts file.
func (s *FileSink) Restricted(d string) error {
	return s.write(func() *bodyFile { return s.restricted }, d)
}

func (s *FileSink) write(pick func() *bodyFile, d string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	return pick().add(d)
}

// Summarize records the run statistics used by Commit.
func (s *FileSink) Summarize(res *pipeline.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = res
}

// Commit publishes every output. Outputs are replaced together: if any
// rename fails, the targets already replaced are restored from backups and
// the previous outputs stay live.
func (s *FileSink) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.closed = true
	defer s.general.discard()
	defer s.restricted.discard()

	totals := map[string]int{}
	if s.result != nil {
		for name, st := range s.result.Stats {
			totals[name] = st.Total
		}
	}

	var generalSources []domain.SourceDescriptor
	for _, src := range s.sources {
		if src.Category == domain.CategoryGeneral {
			generalSources = append(generalSources, src)
		}
	}

	var ready []staged
	defer func() {
		for _, st := range ready {
			_ = os.Remove(st.tmp)
		}
	}()

	for _, out := range []struct {
		body   *bodyFile
		final  string
		header []string
	}{
		{s.general, s.paths.general(), Header(GeneralTitle, s.general.count, generalSources, totals, s.now)},
		{s.restricted, s.paths.restricted(), Header(RestrictedTitle, s.restricted.count, s.sources, totals, s.now)},
	} {
		tmp, err := out.body.assemble(out.header)
		if err != nil {
			return err
		}
		ready = append(ready, staged{tmp: tmp, final: out.final})
	}

	if s.paths.StatsFile != "" && s.result != nil {
		data, err := BuildStats(s.result, s.sources, s.now).Encode()
		if err != nil {
			return err
		}
		tmp, err := writeTemp(s.paths.Dir, s.paths.StatsFile, data)
		if err != nil {
			return err
		}
		ready = append(ready, staged{tmp: tmp, final: s.paths.stats()})
	}

	return publish(ready)
}

// Abort discards everything written so far. It is safe to call more than once.
func (s *FileSink) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.general.discard()
	s.restricted.discard()
	return nil
}

// rename is swapped in tests to fail a specific target.
var rename = os.Rename

// staged is a finished temp file waiting to replace final.
type staged struct{ tmp, final string }

// publish renames every staged file into place. Existing targets are backed
// up before the first rename so a failure part way through can be undone.
func publish(files []staged) error {
	backups := make([]string, len(files))
	defer func() {
		for _, b := range backups {
			if b != "" {
				_ = os.Remove(b)
			}
		}
	}()

	for i, f := range files {
		b, err := backup(f.final)
		if err != nil {
			return err
		}
		backups[i] = b
	}

	for i, f := range files {
		if err := rename(f.tmp, f.final); err != nil {
			restore(files[:i], backups[:i])
			return fmt.Errorf("publishing %s: %w", filepath.Base(f.final), err)
		}
	}
	return nil
}

// restore undoes the renames of files, newest first. Targets that did not
// exist before are removed.
func restore(files []staged, backups []string) {
	for i := len(files) - 1; i >= 0; i-- {
		if backups[i] == "" {
			_ = os.Remove(files[i].final)
			continue
		}
		if err := rename(backups[i], files[i].final); err == nil {
			backups[i] = ""
		}
	}
}

// backup keeps a copy of final next to it and returns the copy's path, or
// "" when final does not exist yet. A hard link is tried first.
func backup(final string) (string, error) {
	name := filepath.Base(final)
	info, err := os.Lstat(final)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("inspecting %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("publishing %s: existing target is not a regular file", name)
	}

	dst := filepath.Join(filepath.Dir(final), "."+name+".bak-"+uuid.NewString())
	if err := os.Link(final, dst); err == nil {
		return dst, nil
	}
	if err := copyFile(final, dst); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("backing up %s: %w", name, err)
	}
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// bodyFile buffers the domain lines of one output.
type bodyFile struct {
	dir   string
	name  string
	f     *os.File
	w     *bufio.Writer
	count int
}

func newBodyFile(dir, name string) (*bodyFile, error) {
	f, err := os.CreateTemp(dir, "."+name+".body-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file for %s: %w", name, err)
	}
	return &bodyFile{dir: dir, name: name, f: f, w: bufio.NewWriterSize(f, 256<<10)}, nil
}

func (b *bodyFile) add(d string) error {
	if _, err := b.w.WriteString(HostsLine(d)); err != nil {
		return fmt.Errorf("writing %s: %w", b.name, err)
	}
	if err := b.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("writing %s: %w", b.name, err)
	}
	b.count++
	return nil
}

// assemble writes header followed by the buffered body into a new synced
// temp file and returns its path.
func (b *bodyFile) assemble(header []string) (string, error) {
	if err := b.w.Flush(); err != nil {
		return "", fmt.Errorf("flushing %s: %w", b.name, err)
	}
	if _, err := b.f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewinding %s: %w", b.name, err)
	}

	out, err := os.CreateTemp(b.dir, "."+b.name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file for %s: %w", b.name, err)
	}
	fail := func(err error) (string, error) {
		_ = out.Close()
		_ = os.Remove(out.Name())
		return "", err
	}

	w := bufio.NewWriterSize(out, 256<<10)
	if _, err := w.WriteString(strings.Join(header, "\n") + "\n\n"); err != nil {
		return fail(fmt.Errorf("writing %s header: %w", b.name, err))
	}
	if _, err := io.Copy(w, b.f); err != nil {
		return fail(fmt.Errorf("copying %s: %w", b.name, err))
	}
	if err := w.Flush(); err != nil {
		return fail(fmt.Errorf("flushing %s: %w", b.name, err))
	}
	if err := out.Chmod(0o644); err != nil {
		return fail(fmt.Errorf("setting %s permissions: %w", b.name, err))
	}
	if err := out.Sync(); err != nil {
		return fail(fmt.Errorf("syncing %s: %w", b.name, err))
	}
	if err := out.Close(); err != nil {
		return fail(fmt.Errorf("closing %s: %w", b.name, err))
	}
	return out.Name(), nil
}

func (b *bodyFile) discard() {
	if b.f == nil {
		return
	}
	_ = b.f.Close()
	_ = os.Remove(b.f.Name())
	b.f = nil
}

func writeTemp(dir, name string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file for %s: %w", name, err)
	}

	_, err = f.Write(data)
	if err == nil {
		err = f.Chmod(0o644)
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	return f.Name(), nil
}
