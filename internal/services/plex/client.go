package plex

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"previewd/internal/config"
	"previewd/internal/logging"
	"previewd/internal/services"
)

const userAgent = "previewd/0.1.0"

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to a Plex Media Server over HTTP.
type Client struct {
	baseURL     string
	token       string
	client      HTTPDoer
	logger      *slog.Logger
	pathMapping [2]string
}

// NewClient constructs a catalog client from configuration.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.Plex.URL, "/"),
		token:   cfg.Plex.Token,
		client:  &http.Client{Timeout: time.Duration(cfg.Plex.TimeoutSeconds) * time.Second},
		logger:  logging.NewComponentLogger(logger, "plex"),
		pathMapping: [2]string{
			cfg.Plex.VideosPathMapping,
			cfg.Plex.LocalVideosPathMapping,
		},
	}
}

// NewClientWithDoer constructs a client with a custom HTTP backend (tests).
func NewClientWithDoer(baseURL, token string, doer HTTPDoer, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  doer,
		logger:  logging.NewComponentLogger(logger, "plex"),
	}
}

type directoryXML struct {
	Key   string `xml:"key,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

type sectionsXML struct {
	Directories []directoryXML `xml:"Directory"`
}

type partXML struct {
	File string `xml:"file,attr"`
	Size int64  `xml:"size,attr"`
	Hash string `xml:"hash,attr"`
}

type mediaXML struct {
	Parts []partXML `xml:"Part"`
}

type videoXML struct {
	RatingKey string     `xml:"ratingKey,attr"`
	Title     string     `xml:"title,attr"`
	AddedAt   int64      `xml:"addedAt,attr"`
	UpdatedAt int64      `xml:"updatedAt,attr"`
	Media     []mediaXML `xml:"Media"`
}

type libraryXML struct {
	Videos []videoXML `xml:"Video"`
}

// Libraries lists the server's library sections.
func (c *Client) Libraries(ctx context.Context) ([]Library, error) {
	var container sectionsXML
	if err := c.get(ctx, "/library/sections", &container); err != nil {
		return nil, err
	}

	libraries := make([]Library, 0, len(container.Directories))
	for _, dir := range container.Directories {
		if dir.Key == "" || dir.Title == "" {
			continue
		}
		libraries = append(libraries, Library{ID: dir.Key, Name: dir.Title, Type: dir.Type})
	}
	return libraries, nil
}

// Items lists the media items in a library section. File paths are remapped
// when a path mapping is configured, and items without a usable file are
// skipped with a warning.
func (c *Client) Items(ctx context.Context, libraryID string) ([]MediaItem, error) {
	var container libraryXML
	path := fmt.Sprintf("/library/sections/%s/all", libraryID)
	if err := c.get(ctx, path, &container); err != nil {
		return nil, err
	}

	items := make([]MediaItem, 0, len(container.Videos))
	for _, video := range container.Videos {
		part, ok := firstPart(video)
		if !ok {
			c.logger.Warn("media item has no file part",
				logging.String("rating_key", video.RatingKey),
				logging.String("title", video.Title),
			)
			continue
		}
		file := c.mapPath(part.File)
		hash := part.Hash
		if hash == "" {
			// Older servers omit the bundle hash from section listings;
			// Plex derives it from the part path, so recompute it locally.
			hash = sha1Hex(part.File)
		}
		items = append(items, MediaItem{
			RatingKey:  video.RatingKey,
			Title:      video.Title,
			File:       file,
			Size:       part.Size,
			BundleHash: hash,
			AddedAt:    time.Unix(video.AddedAt, 0).UTC(),
			UpdatedAt:  time.Unix(video.UpdatedAt, 0).UTC(),
		})
	}
	return items, nil
}

func firstPart(video videoXML) (partXML, bool) {
	for _, media := range video.Media {
		for _, part := range media.Parts {
			if strings.TrimSpace(part.File) != "" {
				return part, true
			}
		}
	}
	return partXML{}, false
}

func (c *Client) mapPath(file string) string {
	from, to := c.pathMapping[0], c.pathMapping[1]
	if from == "" || to == "" {
		return file
	}
	return strings.Replace(file, from, to, 1)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build plex request: %w", err)
	}
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("Accept", "application/xml")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrJobFatal, "plex", "fetch "+path, "server unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrValidation, "plex", "fetch "+path, "not found (status "+strconv.Itoa(resp.StatusCode)+")", nil)
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return services.Wrap(services.ErrJobFatal, "plex", "fetch "+path,
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	if err := xml.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrJobFatal, "plex", "decode "+path, "", err)
	}
	return nil
}

func sha1Hex(value string) string {
	sum := sha1.Sum([]byte(value))
	return hex.EncodeToString(sum[:])
}
