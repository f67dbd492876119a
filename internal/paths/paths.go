// Package paths maps user-supplied path strings, possibly written with
// another OS's drive-letter or UNC syntax, onto locations inside the
// execution environment's mount namespace.
package paths

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	drivePathRe = regexp.MustCompile(`^[a-zA-Z]:([/\\]|$)`)
	uncPathRe   = regexp.MustCompile(`^\\\\[^\\]+\\[^\\]+`)
)

// Origin classifies how an input path was interpreted.
type Origin string

const (
	// OriginNative means the path passed through unchanged.
	OriginNative Origin = "native"
	// OriginDrive means the path used foreign drive-letter syntax and
	// was translated through the candidate list.
	OriginDrive Origin = "drive"
	// OriginUNC means the path is a network-share path that cannot be
	// translated; callers must report it as unreachable.
	OriginUNC Origin = "unc"
)

// ResolvedPath is the immutable result of one resolution call.
type ResolvedPath struct {
	// Original is the normalized input string.
	Original string
	// Path is the chosen filesystem path: the first existing candidate,
	// else the first candidate, else the literal input.
	Path string
	// Origin flags how the input was interpreted.
	Origin Origin
	// Candidates is the ordered translation list that was considered.
	Candidates []string
}

// SmartRoot is a curated starting directory offered to a browsing user.
type SmartRoot struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Resolver translates foreign paths using a fixed, auditable candidate
// priority. Mount roots are injectable so the priority order can be
// exercised against a temp directory in tests.
type Resolver struct {
	// mountRoots are checked first, in order ("/host_mnt", "/mnt").
	mountRoots []string
	// volumesDrive is the drive letter that aliases volumesRoot, or "".
	volumesDrive string
	// volumesRoot is the alternate-volume root ("/Volumes").
	volumesRoot string
	// homeRoot is the home-directory root ("/Users").
	homeRoot string
	// rootPrefix is prepended to bare drive roots; "" in production,
	// a temp dir in tests.
	rootPrefix string
}

func NewResolver(volumesDrive string) *Resolver {
	return &Resolver{
		mountRoots:   []string{"/host_mnt", "/mnt"},
		volumesDrive: strings.ToLower(volumesDrive),
		volumesRoot:  "/Volumes",
		homeRoot:     "/Users",
	}
}

// Normalize trims surrounding whitespace and one matching pair of
// quote characters.
func Normalize(path string) string {
	cleaned := strings.TrimSpace(path)
	if len(cleaned) >= 2 {
		first, last := cleaned[0], cleaned[len(cleaned)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			cleaned = strings.TrimSpace(cleaned[1 : len(cleaned)-1])
		}
	}
	return cleaned
}

// IsForeign reports whether the input uses drive-letter or UNC syntax.
func IsForeign(path string) bool {
	normalized := Normalize(path)
	if normalized == "" {
		return false
	}
	return drivePathRe.MatchString(normalized) || uncPathRe.MatchString(normalized)
}

// IsUNC reports whether the input is a network-share path.
func IsUNC(path string) bool {
	return uncPathRe.MatchString(Normalize(path))
}

// SplitDrivePath splits a drive-letter path into its lowercase drive
// letter and the remainder with separators normalized to '/'.
func SplitDrivePath(path string) (drive, rest string) {
	normalized := Normalize(path)
	if normalized == "" {
		return "", ""
	}
	drive = strings.ToLower(normalized[:1])
	if len(normalized) > 2 {
		rest = normalized[2:]
	}
	rest = strings.ReplaceAll(rest, `\`, "/")
	rest = strings.TrimLeft(rest, "/")
	return drive, rest
}

// Candidates builds the ordered, deduplicated translation list for a
// drive-letter path. UNC and non-foreign inputs produce no candidates.
func (r *Resolver) Candidates(path string) []string {
	normalized := Normalize(path)
	if !IsForeign(normalized) || IsUNC(normalized) {
		return nil
	}

	drive, rest := SplitDrivePath(normalized)

	var candidates []string
	join := func(base string) string {
		if rest == "" {
			return base
		}
		return base + "/" + rest
	}

	for _, mount := range r.mountRoots {
		candidates = append(candidates, join(mount+"/"+drive))
	}

	if r.volumesDrive != "" && r.volumesDrive == drive {
		candidates = append(candidates, join(r.rootPrefix+r.volumesRoot))
	}

	candidates = append(candidates, join(r.rootPrefix+"/"+drive))

	if drive == "c" && strings.HasPrefix(strings.ToLower(rest), "users/") {
		tail := ""
		if idx := strings.Index(rest, "/"); idx >= 0 {
			tail = rest[idx+1:]
		}
		users := r.rootPrefix + r.homeRoot
		if tail != "" {
			candidates = append(candidates, users+"/"+tail)
		} else {
			candidates = append(candidates, users)
		}
	}

	seen := make(map[string]bool, len(candidates))
	unique := candidates[:0]
	for _, c := range candidates {
		if !seen[c] {
			seen[c] = true
			unique = append(unique, c)
		}
	}
	return unique
}

// Resolve maps an input path to its best location. Selection is "first
// existing candidate, else first candidate, else the literal input".
func (r *Resolver) Resolve(path string) ResolvedPath {
	normalized := Normalize(path)

	if normalized == "" {
		return ResolvedPath{Original: "", Path: ".", Origin: OriginNative}
	}

	if IsUNC(normalized) {
		return ResolvedPath{Original: normalized, Path: normalized, Origin: OriginUNC}
	}

	if IsForeign(normalized) {
		candidates := r.Candidates(normalized)
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				return ResolvedPath{
					Original:   normalized,
					Path:       candidate,
					Origin:     OriginDrive,
					Candidates: candidates,
				}
			}
		}
		if len(candidates) > 0 {
			return ResolvedPath{
				Original:   normalized,
				Path:       candidates[0],
				Origin:     OriginDrive,
				Candidates: candidates,
			}
		}
		return ResolvedPath{Original: normalized, Path: normalized, Origin: OriginDrive}
	}

	return ResolvedPath{Original: normalized, Path: normalized, Origin: OriginNative}
}

// IsDriveMountRoot reports whether path is exactly a translated drive
// root (e.g., /host_mnt/c, /mnt/d, or /z). Such a path is never a safe
// parent for directory creation and must not be reported as a
// meaningful browse parent.
func (r *Resolver) IsDriveMountRoot(path string) bool {
	clean := filepath.Clean(path)

	for _, mount := range r.mountRoots {
		if rest, ok := strings.CutPrefix(clean, mount+"/"); ok {
			return isDriveLetter(rest)
		}
	}

	trimmed := strings.TrimPrefix(clean, r.rootPrefix)
	if len(trimmed) == 2 && trimmed[0] == '/' {
		return isDriveLetter(trimmed[1:])
	}

	return false
}

func isDriveLetter(s string) bool {
	if len(s) != 1 {
		return false
	}
	c := s[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// DetectDriveMounts finds foreign drive mounts visible in the execution
// environment, keyed by lowercase letter. Earlier mount roots win.
func (r *Resolver) DetectDriveMounts() map[string]string {
	drives := make(map[string]string)

	for _, base := range r.mountRoots {
		entries, err := os.ReadDir(base)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			name := strings.ToLower(entry.Name())
			if entry.IsDir() && isDriveLetter(name) {
				if _, ok := drives[name]; !ok {
					drives[name] = base + "/" + entry.Name()
				}
			}
		}
	}

	for letter := 'a'; letter <= 'z'; letter++ {
		name := string(letter)
		if _, ok := drives[name]; ok {
			continue
		}
		candidate := r.rootPrefix + "/" + name
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			drives[name] = candidate
		}
	}

	return drives
}

// SmartRoots returns ordered "browse from here" entries: detected drive
// mounts sorted by letter, then the home root, then the volumes root.
// A single fallback root is returned when none of those exist.
func (r *Resolver) SmartRoots() []SmartRoot {
	var roots []SmartRoot

	drives := r.DetectDriveMounts()
	letters := make([]string, 0, len(drives))
	for letter := range drives {
		letters = append(letters, letter)
	}
	sort.Strings(letters)
	for _, letter := range letters {
		roots = append(roots, SmartRoot{
			Name: strings.ToUpper(letter) + ": (Drive)",
			Path: drives[letter],
		})
	}

	if _, err := os.Stat(r.rootPrefix + r.homeRoot); err == nil {
		roots = append(roots, SmartRoot{Name: "Users (Home)", Path: r.rootPrefix + r.homeRoot})
	}
	if _, err := os.Stat(r.rootPrefix + r.volumesRoot); err == nil {
		roots = append(roots, SmartRoot{Name: "Volumes (Drives)", Path: r.rootPrefix + r.volumesRoot})
	}

	if len(roots) == 0 {
		roots = append(roots, SmartRoot{Name: "Root", Path: "/"})
	}

	return roots
}
