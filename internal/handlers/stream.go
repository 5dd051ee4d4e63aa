package handlers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/sabihismail/website-ripper/internal/fsutil"
)

// streamManifest is the segmented-stream description served next to a DASH
// manifest URL: per-rendition init segments plus ordered media segments.
type streamManifest struct {
	BaseURL string            `json:"base_url"`
	Video   []streamRendition `json:"video"`
	Audio   []streamRendition `json:"audio"`
}

type streamRendition struct {
	ID          string          `json:"id"`
	BaseURL     string          `json:"base_url"`
	MimeType    string          `json:"mime_type"`
	Height      int             `json:"height"`
	Bitrate     int             `json:"bitrate"`
	InitSegment string          `json:"init_segment"`
	Segments    []streamSegment `json:"segments"`
}

type streamSegment struct {
	URL string `json:"url"`
}

// decodeStreamManifest validates the fields reassembly depends on.
func decodeStreamManifest(data []byte) (*streamManifest, error) {
	var m streamManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse stream manifest: %w", err)
	}
	if len(m.Video) == 0 {
		return nil, fmt.Errorf("%w: manifest has no video renditions", ErrNoRenditions)
	}
	for i, r := range m.Video {
		if len(r.Segments) == 0 {
			return nil, fmt.Errorf("video rendition %d (%s) has no segments", i, r.ID)
		}
	}
	return &m, nil
}

// bestStreamRendition selects by quality label synthesized from the stream
// parameters: height for video, bitrate for audio.
func bestStreamRendition(renditions []streamRendition, video bool) (streamRendition, bool) {
	labeled := make([]Rendition, len(renditions))
	for i, r := range renditions {
		if video {
			labeled[i] = Rendition{Label: fmt.Sprintf("%dp", r.Height), URL: r.ID}
		} else {
			labeled[i] = Rendition{Label: fmt.Sprintf("%d", r.Bitrate), URL: r.ID}
		}
	}
	best, ok := BestRendition(labeled)
	if !ok {
		return streamRendition{}, false
	}
	for _, r := range renditions {
		if r.ID == best.URL {
			return r, true
		}
	}
	return renditions[0], true
}

// downloadSegmented fetches a stream manifest, reassembles the best video
// rendition (init segment plus media segments in manifest order) and, when
// an audio rendition exists, muxes it in with ffmpeg. Returns the final
// local file under outDir.
func downloadSegmented(ctx *Context, manifestURL, outDir string) (string, error) {
	if manifestURL == "" {
		return "", ErrNoRenditions
	}

	body, err := ctx.Fetch.FetchBody(manifestURL, ctx.DefaultHeaders())
	if err != nil {
		return "", fmt.Errorf("fetch stream manifest %s: %w", manifestURL, err)
	}
	manifest, err := decodeStreamManifest(body)
	if err != nil {
		return "", err
	}

	base := resolveStreamURL(manifestURL, manifest.BaseURL)

	video, _ := bestStreamRendition(manifest.Video, true)
	videoFile, err := downloadRendition(ctx, base, video)
	if err != nil {
		return "", err
	}
	defer os.Remove(videoFile)

	assembled := videoFile
	name := video.ID + extensionFor(video.MimeType, ".mp4")

	if audio, ok := bestStreamRendition(manifest.Audio, false); ok {
		audioFile, err := downloadRendition(ctx, base, audio)
		if err != nil {
			return "", err
		}
		defer os.Remove(audioFile)

		muxed, err := muxStreams(videoFile, audioFile)
		if err != nil {
			return "", err
		}
		defer os.Remove(muxed)
		assembled = muxed
		name = video.ID + ".mkv"
	}

	dest := filepath.Join(outDir, fsutil.SanitizeFilename(name))
	placed, _, err := fsutil.Place(assembled, dest, fsutil.PolicyFindValidFile)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(placed), nil
}

// downloadRendition writes the init segment and every media segment, in
// manifest order, into one temporary file. Any segment failure aborts this
// rendition; other assets on the page are unaffected.
func downloadRendition(ctx *Context, base string, r streamRendition) (string, error) {
	init, err := base64.StdEncoding.DecodeString(r.InitSegment)
	if err != nil {
		return "", fmt.Errorf("decode init segment for %s: %w", r.ID, err)
	}

	spool := filepath.Join(os.TempDir(), "webrip-stream-"+uuid.NewString())
	file, err := os.Create(spool)
	if err != nil {
		return "", err
	}

	cleanup := func(err error) (string, error) {
		file.Close()
		os.Remove(spool)
		return "", err
	}

	if _, err := file.Write(init); err != nil {
		return cleanup(err)
	}

	renditionBase := resolveStreamURL(base, r.BaseURL)
	for i, segment := range r.Segments {
		segURL := resolveStreamURL(renditionBase, segment.URL)
		if err := ctx.Fetch.FetchInto(segURL, ctx.DefaultHeaders(), file); err != nil {
			return cleanup(fmt.Errorf("segment %d/%d of %s: %w", i+1, len(r.Segments), r.ID, err))
		}
	}

	if err := file.Close(); err != nil {
		os.Remove(spool)
		return "", err
	}
	return spool, nil
}

// muxStreams copies the video and audio tracks into one mkv container via
// the external transcoder.
func muxStreams(videoFile, audioFile string) (string, error) {
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", fmt.Errorf("ffmpeg not available for stream muxing: %w", err)
	}

	out := filepath.Join(os.TempDir(), "webrip-mux-"+uuid.NewString()+".mkv")
	cmd := exec.Command(ffmpeg, "-y",
		"-i", videoFile,
		"-i", audioFile,
		"-c:v", "copy",
		"-c:a", "copy",
		out)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		os.Remove(out)
		return "", fmt.Errorf("mux streams: %w", err)
	}
	return out, nil
}

func resolveStreamURL(base, ref string) string {
	if ref == "" {
		return base
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return base
	}
	return b.ResolveReference(r).String()
}

func extensionFor(mimeType, fallback string) string {
	switch mimeType {
	case "video/mp4", "audio/mp4":
		return ".mp4"
	case "video/webm", "audio/webm":
		return ".webm"
	case "":
		return fallback
	}
	return fallback
}
