package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// remoteHandler resolves hosted repository references: either owner/name or
// a full URL. It tries a native clone first and falls back to the hosted
// archive download at the primary branch, then the alternate branch.
type remoteHandler struct{}

var repoURLPattern = regexp.MustCompile(`https?://github\.com/([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+)`)

const (
	primaryBranch   = "main"
	alternateBranch = "master"
)

func (r *remoteHandler) Name() string { return "remote" }

func (r *remoteHandler) Detect(descriptor string) bool {
	d := cleanDescriptor(descriptor)
	if strings.Contains(d, "github.com") {
		return true
	}
	return looksLikeRepoID(d)
}

func (r *remoteHandler) Fetch(ctx context.Context, descriptor, workdir string) (string, error) {
	repoID, err := parseRepoID(cleanDescriptor(descriptor))
	if err != nil {
		return "", err
	}

	root := filepath.Join(workdir, "repos", strings.ReplaceAll(repoID, "/", "_"))
	if _, err := os.Stat(filepath.Join(root, ".git")); err == nil {
		log.Info().Str("repo", repoID).Msg("repository already cloned")
		return root, nil
	}

	if err := cloneRepo(ctx, repoID, root); err == nil {
		return root, nil
	} else {
		log.Warn().Err(err).Str("repo", repoID).Msg("native clone failed, trying archive download")
	}

	if err := downloadRepoArchive(ctx, repoID, primaryBranch, root); err == nil {
		return root, nil
	}
	if err := downloadRepoArchive(ctx, repoID, alternateBranch, root); err != nil {
		return "", fmt.Errorf("download %s archive: %w", repoID, err)
	}
	return root, nil
}

// parseRepoID normalises a hosted URL or owner/name reference to owner/name.
func parseRepoID(s string) (string, error) {
	s = strings.TrimSuffix(s, ".git")
	if m := repoURLPattern.FindStringSubmatch(s); m != nil {
		return m[1] + "/" + m[2], nil
	}
	if looksLikeRepoID(s) {
		return s, nil
	}
	return "", fmt.Errorf("cannot parse repository reference %q", s)
}

func cloneRepo(ctx context.Context, repoID, dest string) error {
	if _, err := exec.LookPath("git"); err != nil {
		return fmt.Errorf("git not available: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", "https://github.com/"+repoID+".git", dest)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git clone: %v: %s", err, strings.TrimSpace(string(out)))
	}
	log.Info().Str("repo", repoID).Str("root", dest).Msg("cloned repository")
	return nil
}

func downloadRepoArchive(ctx context.Context, repoID, branch, dest string) error {
	archiveURL := fmt.Sprintf("https://codeload.github.com/%s/zip/refs/heads/%s", repoID, branch)
	tmp, err := os.CreateTemp("", "repo-*.zip")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	client := &http.Client{Timeout: 5 * time.Minute}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archiveURL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("archive download returned %d for branch %s", resp.StatusCode, branch)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		return err
	}

	// The hosted archive nests everything under <name>-<branch>/; extract
	// and promote that single directory to dest.
	staging := dest + ".staging"
	defer os.RemoveAll(staging)
	if err := extractZip(tmp.Name(), staging); err != nil {
		return err
	}
	entries, err := os.ReadDir(staging)
	if err != nil {
		return err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		os.RemoveAll(dest)
		if err := os.Rename(filepath.Join(staging, entries[0].Name()), dest); err != nil {
			return err
		}
	} else {
		os.RemoveAll(dest)
		if err := os.Rename(staging, dest); err != nil {
			return err
		}
	}
	log.Info().Str("repo", repoID).Str("branch", branch).Msg("downloaded repository archive")
	return nil
}

// webHandler fetches a single web document.
type webHandler struct{}

func (w *webHandler) Name() string { return "web" }

func (w *webHandler) Detect(descriptor string) bool {
	d := cleanDescriptor(descriptor)
	return isURL(d) && !strings.Contains(d, "github.com")
}

func (w *webHandler) Fetch(ctx context.Context, descriptor, workdir string) (string, error) {
	d := cleanDescriptor(descriptor)
	u, err := url.Parse(d)
	if err != nil {
		return "", fmt.Errorf("parse URL %q: %w", d, err)
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", d, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", d, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", err
	}

	name := filepath.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "document.txt"
	}
	root := filepath.Join(workdir, "web", u.Hostname())
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(root, name), body, 0o644); err != nil {
		return "", err
	}
	log.Info().Str("url", d).Msg("fetched web document")
	return root, nil
}
