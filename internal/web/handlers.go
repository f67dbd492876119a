package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/jpeg"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/truevine-insights/spectrum/internal/batch"
	"github.com/truevine-insights/spectrum/internal/paths"
	"github.com/truevine-insights/spectrum/internal/preset"
	"github.com/truevine-insights/spectrum/internal/scanner"
	"github.com/truevine-insights/spectrum/pkg/types"
)

type APIErrorResponse struct {
	Message string `json:"message"`
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIErrorResponse{Message: message})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"version": s.version, "name": "Spectrum"})
}

type DirEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type BrowseResponse struct {
	Current     string     `json:"current"`
	Parent      string     `json:"parent,omitempty"`
	Directories []DirEntry `json:"directories"`
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	raw := paths.Normalize(r.URL.Query().Get("path"))

	if raw == "" || raw == "/" {
		var dirs []DirEntry
		for _, root := range s.resolver.SmartRoots() {
			dirs = append(dirs, DirEntry{Name: root.Name, Path: root.Path})
		}
		writeJSON(w, BrowseResponse{Current: "/", Directories: dirs})
		return
	}

	if paths.IsUNC(raw) {
		writeAPIError(w, http.StatusNotFound,
			fmt.Sprintf("network path %s is not accessible here; map the share to a drive letter and retry", raw))
		return
	}

	target := s.resolver.Resolve(raw).Path

	info, err := os.Stat(target)
	if err != nil {
		writeAPIError(w, http.StatusNotFound, fmt.Sprintf("path not found: %s", raw))
		return
	}
	if !info.IsDir() {
		writeAPIError(w, http.StatusBadRequest, fmt.Sprintf("not a directory: %s", raw))
		return
	}

	var dirs []DirEntry
	entries, err := os.ReadDir(target)
	if err == nil {
		for _, entry := range entries {
			if strings.HasPrefix(entry.Name(), ".") || !entry.IsDir() {
				continue
			}
			dirs = append(dirs, DirEntry{
				Name: entry.Name(),
				Path: filepath.Join(target, entry.Name()),
			})
		}
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Name < dirs[j].Name })

	// A drive-mount root's parent is a container directory the picker
	// should never land in; step back to the smart-root view instead.
	parent := filepath.Dir(target)
	if parent == target || s.resolver.IsDriveMountRoot(target) {
		parent = "/"
	}

	writeJSON(w, BrowseResponse{Current: target, Parent: parent, Directories: dirs})
}

type DriveInfo struct {
	Letter     string `json:"letter"`
	Path       string `json:"path"`
	Accessible bool   `json:"accessible"`
	HasPhotos  bool   `json:"has_photos"`
}

type DrivesResponse struct {
	Platform string      `json:"platform"`
	Drives   []DriveInfo `json:"drives"`
}

func (s *Server) handleDrives(w http.ResponseWriter, r *http.Request) {
	mounts := s.resolver.DetectDriveMounts()

	letters := make([]string, 0, len(mounts))
	for letter := range mounts {
		letters = append(letters, letter)
	}
	sort.Strings(letters)

	drives := make([]DriveInfo, 0, len(letters))
	for _, letter := range letters {
		path := mounts[letter]
		info := DriveInfo{Letter: letter, Path: path}
		if entries, err := os.ReadDir(path); err == nil {
			info.Accessible = true
			for _, e := range entries {
				if !e.IsDir() {
					continue
				}
				switch strings.ToUpper(e.Name()) {
				case "DCIM", "PICTURES", "PHOTOS":
					info.HasPhotos = true
				}
			}
		}
		drives = append(drives, info)
	}

	writeJSON(w, DrivesResponse{Platform: runtime.GOOS, Drives: drives})
}

type ScanRequest struct {
	Path         string `json:"path"`
	Recursive    bool   `json:"recursive"`
	OutputSubdir string `json:"output_subdir"`
}

type ScanResponse struct {
	types.ScanSummary
	Files []types.FileRecord `json:"files"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	req := ScanRequest{Recursive: true}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.OutputSubdir == "" {
		req.OutputSubdir = s.cfg.OutputSubdir
	}

	root := s.resolver.Resolve(paths.Normalize(req.Path)).Path
	records, err := s.scanner.Scan(root, req.Recursive, req.OutputSubdir)
	if err != nil {
		switch {
		case errors.Is(err, scanner.ErrNotFound):
			writeAPIError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, scanner.ErrNotADirectory):
			writeAPIError(w, http.StatusBadRequest, err.Error())
		default:
			writeAPIError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, ScanResponse{
		ScanSummary: scanner.Summarize(records),
		Files:       records,
	})
}

type ConvertResponse struct {
	RunID string `json:"run_id"`
	types.BatchResult
}

var runMutex sync.Mutex

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if !runMutex.TryLock() {
		writeAPIError(w, http.StatusConflict, "a conversion batch is already running")
		return
	}
	defer runMutex.Unlock()

	var req batch.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.applyRequestDefaults(&req)

	runID := uuid.NewString()
	total := len(req.Files)
	processed := 0

	s.broadcastJSON(wsEvent{Type: batch.EventStart, RunID: runID, Total: total})
	result, err := s.orch.Run(r.Context(), req, func(outcome types.ConversionOutcome) {
		processed++
		oc := outcome
		s.broadcastJSON(wsEvent{
			Type:      batch.EventProgress,
			RunID:     runID,
			Total:     total,
			Processed: processed,
			Result:    &oc,
		})
	})
	if err != nil {
		s.broadcastJSON(wsEvent{Type: batch.EventError, RunID: runID, Message: err.Error()})
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.broadcastJSON(wsEvent{Type: batch.EventComplete, RunID: runID, Total: total, Processed: processed})
	writeJSON(w, ConvertResponse{RunID: runID, BatchResult: *result})
}

// handleConvertStream runs the batch while writing one JSON event per
// line. Closing the connection cancels the run through the request
// context.
func (s *Server) handleConvertStream(w http.ResponseWriter, r *http.Request) {
	if !runMutex.TryLock() {
		writeAPIError(w, http.StatusConflict, "a conversion batch is already running")
		return
	}
	defer runMutex.Unlock()

	var req batch.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.applyRequestDefaults(&req)

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeAPIError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")

	enc := json.NewEncoder(w)
	streamer := batch.NewStreamer(s.orch)
	for ev := range streamer.Events(r.Context(), req) {
		if err := enc.Encode(ev); err != nil {
			return
		}
		flusher.Flush()
	}
}

func (s *Server) applyRequestDefaults(req *batch.Request) {
	if req.Quality == 0 {
		req.Quality = s.cfg.Quality
	}
	if req.Preset == "" {
		req.Preset = s.cfg.DefaultPreset
	}
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	raw := paths.Normalize(r.URL.Query().Get("path"))
	if raw == "" {
		writeAPIError(w, http.StatusBadRequest, "path is required")
		return
	}

	target := s.resolver.Resolve(raw).Path
	info, err := os.Stat(target)
	if err != nil {
		writeAPIError(w, http.StatusNotFound, fmt.Sprintf("file not found: %s", raw))
		return
	}
	if info.IsDir() {
		writeAPIError(w, http.StatusBadRequest, fmt.Sprintf("not a file: %s", raw))
		return
	}

	fields, err := s.extractor.Extract(target)
	if err != nil {
		writeAPIError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, fields)
}

type ReviewRequest struct {
	SourceDir    string `json:"source_dir"`
	OutputSubdir string `json:"output_subdir"`
}

type ReviewResponse struct {
	TotalOriginal  int                `json:"total_original"`
	TotalConverted int                `json:"total_converted"`
	Pairs          []types.ReviewPair `json:"pairs"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.OutputSubdir == "" {
		req.OutputSubdir = s.cfg.OutputSubdir
	}

	root := s.resolver.Resolve(paths.Normalize(req.SourceDir)).Path
	records, err := s.scanner.Scan(root, true, req.OutputSubdir)
	if err != nil {
		switch {
		case errors.Is(err, scanner.ErrNotFound):
			writeAPIError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, scanner.ErrNotADirectory):
			writeAPIError(w, http.StatusBadRequest, err.Error())
		default:
			writeAPIError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	resp := ReviewResponse{TotalOriginal: len(records), Pairs: []types.ReviewPair{}}
	for _, rec := range records {
		if !rec.AlreadyConverted {
			continue
		}
		rel, err := filepath.Rel(root, rec.Path)
		if err != nil {
			continue
		}
		ext := filepath.Ext(rel)
		converted := filepath.Join(root, req.OutputSubdir, rel[:len(rel)-len(ext)]+s.cfg.OutputExtension)
		resp.TotalConverted++
		resp.Pairs = append(resp.Pairs, types.ReviewPair{Source: rec.Path, Converted: converted})
	}

	writeJSON(w, resp)
}

// previewMaxDim bounds the longest edge of generated previews.
const previewMaxDim = 1600

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	target, ok := s.resolveServableFile(w, r)
	if !ok {
		return
	}

	img, err := imaging.Open(target)
	if err != nil {
		writeAPIError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	img = imaging.Fit(img, previewMaxDim, previewMaxDim, imaging.Lanczos)

	w.Header().Set("Content-Type", "image/jpeg")
	jpeg.Encode(w, img, &jpeg.Options{Quality: 80})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	target, ok := s.resolveServableFile(w, r)
	if !ok {
		return
	}
	http.ServeFile(w, r, target)
}

// resolveServableFile validates a ?path= query for the preview and file
// endpoints: the file must exist and carry the configured output
// extension, so RAW sources and arbitrary files are never served.
func (s *Server) resolveServableFile(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := paths.Normalize(r.URL.Query().Get("path"))
	if raw == "" {
		writeAPIError(w, http.StatusBadRequest, "path is required")
		return "", false
	}

	target := s.resolver.Resolve(raw).Path
	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		writeAPIError(w, http.StatusNotFound, fmt.Sprintf("file not found: %s", raw))
		return "", false
	}
	if !strings.EqualFold(filepath.Ext(target), s.cfg.OutputExtension) {
		writeAPIError(w, http.StatusUnsupportedMediaType,
			fmt.Sprintf("unsupported file type: %s", filepath.Ext(target)))
		return "", false
	}
	return target, true
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"default": s.cfg.DefaultPreset,
		"presets": preset.All(),
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.cfg)
}

// wsEvent is the websocket mirror of the NDJSON progress protocol, with
// a run identifier so a UI can follow several tabs.
type wsEvent struct {
	Type      string                   `json:"type"`
	RunID     string                   `json:"run_id"`
	Total     int                      `json:"total,omitempty"`
	Processed int                      `json:"processed,omitempty"`
	Result    *types.ConversionOutcome `json:"result,omitempty"`
	Message   string                   `json:"message,omitempty"`
}

func (s *Server) broadcastJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.hub.broadcast <- data
}
