package loader

import (
	"archive/zip"
	"context"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gurs-tools/kataster-cli/internal/resilience"
)

const ftpDialTimeout = 30 * time.Second

// copyChunk is the unit the rate limiter meters. Must stay at or below the
// limiter burst.
const copyChunk = 32 * 1024

// FetchExport downloads one export bundle from the registry FTP mirror into
// the temp directory and returns the local file paths, extracting ZIP
// bundles in place. Transient FTP failures are retried; a run of failures
// opens the circuit so a dead mirror fails fast.
func (l *Loader) FetchExport(ctx context.Context, fileName string) ([]string, error) {
	if l.cfg.FTPHost == "" {
		return nil, eris.New("loader: ftp_host not configured")
	}
	if err := os.MkdirAll(l.cfg.TempDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "loader: create temp dir")
	}

	localPath := filepath.Join(l.cfg.TempDir, filepath.Base(fileName))

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("ftp", "fetch")

	err := resilience.Do(ctx, retryCfg, func(ctx context.Context) error {
		return l.breaker.Execute(ctx, func(ctx context.Context) error {
			return l.downloadFTP(ctx, fileName, localPath)
		})
	})
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(localPath), ".zip") {
		extracted, err := extractArchive(localPath, l.cfg.TempDir)
		if err != nil {
			return nil, err
		}
		return extracted, nil
	}
	return []string{localPath}, nil
}

// downloadFTP retrieves a single file, metering the copy when a download
// rate (bytes per second) is configured.
func (l *Loader) downloadFTP(ctx context.Context, fileName, localPath string) error {
	host := l.cfg.FTPHost
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "21")
	}

	remotePath := path.Join(l.cfg.FTPDir, fileName)
	zap.L().Debug("ftp: connecting",
		zap.String("host", host),
		zap.String("path", remotePath),
	)

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(ftpDialTimeout), ftp.DialWithContext(ctx))
	if err != nil {
		return resilience.NewTransientError(eris.Wrap(err, "loader: ftp dial"))
	}
	defer func() { _ = conn.Quit() }()

	user, pass := l.cfg.FTPUser, l.cfg.FTPPassword
	if user == "" {
		user, pass = "anonymous", "anonymous@"
	}
	if err := conn.Login(user, pass); err != nil {
		return eris.Wrap(err, "loader: ftp login")
	}

	resp, err := conn.Retr(remotePath)
	if err != nil {
		return resilience.NewTransientError(eris.Wrapf(err, "loader: ftp retrieve %s", remotePath))
	}
	defer func() { _ = resp.Close() }()

	f, err := os.Create(localPath)
	if err != nil {
		return eris.Wrap(err, "loader: create download file")
	}
	defer func() { _ = f.Close() }()

	var limiter *rate.Limiter
	if l.cfg.DownloadRate > 0 {
		// DownloadRate is MiB/s.
		limiter = rate.NewLimiter(rate.Limit(l.cfg.DownloadRate*1024*1024), copyChunk)
	}
	n, err := rateLimitedCopy(ctx, f, resp, limiter)
	if err != nil {
		return resilience.NewTransientError(eris.Wrapf(err, "loader: download %s", remotePath))
	}

	zap.L().Info("ftp: export downloaded",
		zap.String("path", localPath),
		zap.Int64("bytes", n),
	)
	return nil
}

// rateLimitedCopy copies src to dst, waiting on the limiter per chunk when
// one is set.
func rateLimitedCopy(ctx context.Context, dst io.Writer, src io.Reader, limiter *rate.Limiter) (int64, error) {
	buf := make([]byte, copyChunk)
	var written int64
	for {
		if ctx.Err() != nil {
			return written, ctx.Err()
		}
		n, err := src.Read(buf)
		if n > 0 {
			if limiter != nil {
				if waitErr := limiter.WaitN(ctx, n); waitErr != nil {
					return written, waitErr
				}
			}
			w, writeErr := dst.Write(buf[:n])
			written += int64(w)
			if writeErr != nil {
				return written, writeErr
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}

// extractArchive unpacks a ZIP bundle into destDir and returns the extracted
// file paths.
func extractArchive(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open archive %s", zipPath)
	}
	defer func() { _ = r.Close() }()

	var extracted []string
	for _, f := range r.File {
		// Guard against zip slip.
		destPath := filepath.Join(destDir, f.Name)
		if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
			return nil, eris.Errorf("loader: illegal archive path %q", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return nil, eris.Wrap(err, "loader: create archive dir")
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return nil, eris.Wrap(err, "loader: create archive dir")
		}
		if err := extractEntry(f, destPath); err != nil {
			return nil, err
		}
		extracted = append(extracted, destPath)
	}
	return extracted, nil
}

func extractEntry(f *zip.File, destPath string) error {
	rc, err := f.Open()
	if err != nil {
		return eris.Wrapf(err, "loader: open archive entry %s", f.Name)
	}
	defer func() { _ = rc.Close() }()

	out, err := os.Create(destPath)
	if err != nil {
		return eris.Wrap(err, "loader: create extracted file")
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, rc); err != nil {
		return eris.Wrapf(err, "loader: extract %s", f.Name)
	}
	return nil
}
