package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/maastricht-university/ecg-beats/record"
)

// --- Archive (/<group>/<patient>/<record>.<ext>) ---

func (h *HTTP) Fetch(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch %s %s: %s", u, resp.Status, string(body))
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	return b, nil
}

// URL resolves a decoder-relative file of k against the archive root.
func (h *HTTP) URL(k record.Key, rel string) (string, error) {
	base, err := url.Parse(h.base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(path.Join(k.Group(), filepath.ToSlash(rel)))
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// Mirror downloads every file of k into root, keeping the relative layout.
// Nothing is written unless all files were fetched; each one then lands under
// a temporary name and is renamed once complete.
func (h *HTTP) Mirror(ctx context.Context, k record.Key, files []string, root string) error {
	bodies := make([][]byte, len(files))
	for i, rel := range files {
		u, err := h.URL(k, rel)
		if err != nil {
			return err
		}
		if bodies[i], err = h.Fetch(ctx, u); err != nil {
			return err
		}
	}
	for i, rel := range files {
		b := bodies[i]
		dst := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		tmp := dst + ".part"
		if err := os.WriteFile(tmp, b, 0o644); err != nil {
			return err
		}
		if err := os.Rename(tmp, dst); err != nil {
			os.Remove(tmp)
			return err
		}
	}
	return nil
}
