package imagegen

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MimeLyc/reelforge/internal/storage"
	"github.com/MimeLyc/reelforge/pkg/log"
)

const (
	DefaultPollinationsURL = "https://image.pollinations.ai/prompt"
	minImageBytes          = 1024
	pollinationsAttempts   = 3
)

// PollinationsGenerator fetches images from a keyless prompt-in-URL
// service. Seeds are derived from the scene index so reruns match.
type PollinationsGenerator struct {
	baseURL    string
	httpClient *http.Client
	// backoff is multiplied by the attempt number between retries.
	backoff time.Duration
}

func NewPollinationsGenerator(baseURL string, timeout time.Duration) *PollinationsGenerator {
	if baseURL == "" {
		baseURL = DefaultPollinationsURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &PollinationsGenerator{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		backoff:    3 * time.Second,
	}
}

func (g *PollinationsGenerator) Name() string { return "pollinations" }

// Seed is the deterministic per-scene seed.
func Seed(sceneIndex int) int {
	return sceneIndex*42 + 7
}

func (g *PollinationsGenerator) imageURL(prompt string, sceneIndex, width, height int) string {
	q := url.Values{}
	q.Set("width", fmt.Sprint(width))
	q.Set("height", fmt.Sprint(height))
	q.Set("seed", fmt.Sprint(Seed(sceneIndex)))
	q.Set("nologo", "true")
	return g.baseURL + "/" + url.PathEscape(prompt) + "?" + q.Encode()
}

func (g *PollinationsGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}
	w, h, err := ParseSize(imageSize(req.Profile))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(req.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}
	imageURL := g.imageURL(ComposePrompt(req.Prompt, req.Profile), req.SceneIndex, w, h)
	output := filepath.Join(req.Dir, storage.JobFileName("scene", req.JobID, req.SceneIndex, "png"))

	for attempt := 1; ; attempt++ {
		err = g.download(ctx, imageURL, output)
		if err == nil {
			log.Info("Job %s scene %d image saved: %s", req.JobID, req.SceneIndex, output)
			return output, nil
		}
		log.Warn("Job %s scene %d image attempt %d failed: %v", req.JobID, req.SceneIndex, attempt, err)
		if attempt == pollinationsAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt) * g.backoff):
		}
	}
	return "", fmt.Errorf("image fetch for scene %d failed after %d attempts: %w", req.SceneIndex, pollinationsAttempts, err)
}

func (g *PollinationsGenerator) download(ctx context.Context, imageURL, output string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "reelforge/1.0")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from image service", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(data) < minImageBytes {
		return fmt.Errorf("response too small (%d bytes)", len(data))
	}
	return os.WriteFile(output, data, 0o644)
}
