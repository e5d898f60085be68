package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"reelsmith/internal/services"
)

// Well-known asset folders.
const (
	FolderImages    = "images"
	FolderVideos    = "videos"
	FolderAudio     = "audio"
	FolderLipSync   = "lipsync"
	FolderComposed  = "composed"
	FolderSubtitles = "subtitles"
)

// URLPrefix is the HTTP path under which assets are served.
const URLPrefix = "/assets/"

// maxFetchBytes caps downloads of provider output.
const maxFetchBytes = 1 << 30

// Asset identifies a stored file.
type Asset struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
	Path     string `json:"-"`
}

// Local stores assets beneath a root directory.
type Local struct {
	root    string
	baseURL string
	client  *http.Client
}

// NewLocal returns a Local rooted at root. baseURL is prefixed to asset paths
// when building URLs, e.g. "http://127.0.0.1:7490".
func NewLocal(root, baseURL string, client *http.Client) (*Local, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "init", "assets directory not configured", nil)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create assets dir: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Local{root: root, baseURL: strings.TrimRight(baseURL, "/"), client: client}, nil
}

// Root returns the assets directory.
func (l *Local) Root() string {
	return l.root
}

// Put writes r to a new asset in folder. ext includes the leading dot.
func (l *Local) Put(ctx context.Context, folder, ext string, r io.Reader) (Asset, error) {
	if err := ctx.Err(); err != nil {
		return Asset{}, err
	}
	folder = cleanFolder(folder)
	publicID := folder + "/" + uuid.NewString()
	dir := filepath.Join(l.root, filepath.FromSlash(folder))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Asset{}, fmt.Errorf("create asset folder: %w", err)
	}

	target := filepath.Join(l.root, filepath.FromSlash(publicID)) + normalizeExt(ext)
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return Asset{}, fmt.Errorf("create temp asset: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return Asset{}, fmt.Errorf("write asset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return Asset{}, fmt.Errorf("close asset: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return Asset{}, fmt.Errorf("finalize asset: %w", err)
	}
	return l.asset(publicID, target), nil
}

// PutBytes stores data as a new asset.
func (l *Local) PutBytes(ctx context.Context, folder, ext string, data []byte) (Asset, error) {
	return l.Put(ctx, folder, ext, bytes.NewReader(data))
}

// Fetch downloads a remote URL into folder. The extension is taken from the
// URL path, falling back to the response content type.
func (l *Local) Fetch(ctx context.Context, rawURL, folder string) (Asset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Asset{}, services.Wrap(services.ErrValidation, "storage", "fetch", "invalid asset url", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return Asset{}, services.Wrap(services.ErrTransient, "storage", "fetch", "download failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Asset{}, services.Wrap(services.ErrExternalTool, "storage", "fetch",
			fmt.Sprintf("download returned status %d", resp.StatusCode), nil)
	}

	ext := extFromURL(rawURL)
	if ext == "" {
		if exts, _ := mime.ExtensionsByType(resp.Header.Get("Content-Type")); len(exts) > 0 {
			ext = exts[0]
		}
	}
	return l.Put(ctx, folder, ext, io.LimitReader(resp.Body, maxFetchBytes))
}

// Path resolves a public id to the file on disk.
func (l *Local) Path(publicID string) (string, error) {
	publicID = strings.Trim(path.Clean("/"+publicID), "/")
	if publicID == "" || publicID == "." {
		return "", services.Wrap(services.ErrValidation, "storage", "resolve", "empty public id", nil)
	}
	matches, err := filepath.Glob(filepath.Join(l.root, filepath.FromSlash(publicID)) + ".*")
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		exact := filepath.Join(l.root, filepath.FromSlash(publicID))
		if info, statErr := os.Stat(exact); statErr == nil && !info.IsDir() {
			return exact, nil
		}
		return "", services.Wrap(services.ErrNotFound, "storage", "resolve", "asset "+publicID+" not found", nil)
	}
	return matches[0], nil
}

// Open opens the asset for reading.
func (l *Local) Open(publicID string) (*os.File, error) {
	p, err := l.Path(publicID)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// Delete removes an asset. Missing assets are not an error.
func (l *Local) Delete(publicID string) error {
	p, err := l.Path(publicID)
	if errors.Is(err, services.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete asset: %w", err)
	}
	return nil
}

// Resolve returns a local file path for an asset URL produced by this store.
// ok is false for URLs that point elsewhere.
func (l *Local) Resolve(assetURL string) (string, bool) {
	rel := assetURL
	if l.baseURL != "" {
		rel = strings.TrimPrefix(rel, l.baseURL)
	} else if parsed, err := url.Parse(assetURL); err == nil && parsed.Host != "" {
		rel = parsed.Path
	}
	rel = path.Clean(rel)
	if !strings.HasPrefix(rel, URLPrefix) {
		return "", false
	}
	rel = strings.TrimPrefix(rel, URLPrefix)
	full := filepath.Join(l.root, filepath.FromSlash(rel))
	if !strings.HasPrefix(full, filepath.Clean(l.root)+string(os.PathSeparator)) {
		return "", false
	}
	if _, err := os.Stat(full); err != nil {
		return "", false
	}
	return full, true
}

// Health describes the capacity of the assets filesystem.
type Health struct {
	Root       string `json:"root"`
	TotalBytes uint64 `json:"totalBytes"`
	FreeBytes  uint64 `json:"freeBytes"`
	Writable   bool   `json:"writable"`
}

// Health reports free space and writability of the assets directory.
func (l *Local) Health() (Health, error) {
	health := Health{Root: l.root}
	var stat unix.Statfs_t
	if err := unix.Statfs(l.root, &stat); err != nil {
		return health, fmt.Errorf("statfs %s: %w", l.root, err)
	}
	health.TotalBytes = stat.Blocks * uint64(stat.Bsize)
	health.FreeBytes = stat.Bavail * uint64(stat.Bsize)
	health.Writable = unix.Access(l.root, unix.W_OK) == nil
	return health, nil
}

func (l *Local) asset(publicID, fullPath string) Asset {
	rel, err := filepath.Rel(l.root, fullPath)
	if err != nil {
		rel = publicID
	}
	return Asset{
		URL:      l.baseURL + URLPrefix + filepath.ToSlash(rel),
		PublicID: publicID,
		Path:     fullPath,
	}
}

func cleanFolder(folder string) string {
	folder = strings.Trim(path.Clean("/"+strings.TrimSpace(folder)), "/")
	if folder == "" || folder == "." {
		return "misc"
	}
	return folder
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func extFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	if len(ext) > 6 {
		return ""
	}
	return ext
}
