package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"nanoj/internal/judge/model"
	appErr "nanoj/pkg/errors"
)

const (
	submissionsFile = "submissions.json"
	languagesFile   = "languages.json"
	visibilityFile  = "problem_visibility.json"
	problemsDir     = "problems"

	defaultPageSize = 20
	maxPageSize     = 100
)

// JSONStore is the file-backed default store. One JSON document per
// concern, rewritten atomically under a store-wide lock. It is meant for
// single-process deployments; MySQL replaces the submission store when
// several judge processes share state.
type JSONStore struct {
	root string
	mu   sync.Mutex
}

// NewJSONStore opens (creating if needed) a store rooted at dir.
func NewJSONStore(dir string) (*JSONStore, error) {
	if dir == "" {
		return nil, appErr.ValidationError("data_dir", "required")
	}
	if err := os.MkdirAll(filepath.Join(dir, problemsDir), 0o755); err != nil {
		return nil, appErr.Wrapf(err, appErr.StoreError, "create data dir failed")
	}
	return &JSONStore{root: dir}, nil
}

// Repository bundles the JSON store into the facade, with logs stored
// under the same root.
func (s *JSONStore) Repository(logs LogStore) Repository {
	return Repository{
		Submissions: s,
		Problems:    s,
		Languages:   s,
		Visibility:  s,
		Logs:        logs,
	}
}

func readJSONFile[T any](path string, out *T) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, appErr.Wrapf(err, appErr.StoreError, "read %s failed", filepath.Base(path))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, appErr.Wrapf(err, appErr.InvalidFormat, "decode %s failed", filepath.Base(path))
	}
	return true, nil
}

// writeJSONFile replaces path atomically via a temp file in the same
// directory.
func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return appErr.Wrapf(err, appErr.StoreError, "encode %s failed", filepath.Base(path))
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-")
	if err != nil {
		return appErr.Wrapf(err, appErr.StoreError, "create temp file failed")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return appErr.Wrapf(err, appErr.StoreError, "write %s failed", filepath.Base(path))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return appErr.Wrapf(err, appErr.StoreError, "close %s failed", filepath.Base(path))
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return appErr.Wrapf(err, appErr.StoreError, "replace %s failed", filepath.Base(path))
	}
	return nil
}

func (s *JSONStore) readSubmissions() (map[string]*model.Submission, error) {
	subs := map[string]*model.Submission{}
	if _, err := readJSONFile(filepath.Join(s.root, submissionsFile), &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// Create inserts a submission.
func (s *JSONStore) Create(ctx context.Context, sub *model.Submission) error {
	if sub == nil || sub.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	subs, err := s.readSubmissions()
	if err != nil {
		return err
	}
	if _, exists := subs[sub.SubmissionID]; exists {
		return appErr.Newf(appErr.RecordAlreadyExists, "submission %s already exists", sub.SubmissionID)
	}
	subs[sub.SubmissionID] = sub
	return writeJSONFile(filepath.Join(s.root, submissionsFile), subs)
}

// Get fetches a submission by id.
func (s *JSONStore) Get(ctx context.Context, submissionID string) (*model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs, err := s.readSubmissions()
	if err != nil {
		return nil, err
	}
	sub, ok := subs[submissionID]
	if !ok {
		return nil, appErr.Newf(appErr.SubmissionNotFound, "submission %s not found", submissionID)
	}
	return sub, nil
}

// Update replaces a stored submission.
func (s *JSONStore) Update(ctx context.Context, sub *model.Submission) error {
	if sub == nil || sub.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	subs, err := s.readSubmissions()
	if err != nil {
		return err
	}
	if _, ok := subs[sub.SubmissionID]; !ok {
		return appErr.Newf(appErr.SubmissionNotFound, "submission %s not found", sub.SubmissionID)
	}
	subs[sub.SubmissionID] = sub
	return writeJSONFile(filepath.Join(s.root, submissionsFile), subs)
}

// List returns matching submissions newest first.
func (s *JSONStore) List(ctx context.Context, filter SubmissionFilter) ([]*model.Submission, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs, err := s.readSubmissions()
	if err != nil {
		return nil, 0, err
	}

	matched := make([]*model.Submission, 0, len(subs))
	for _, sub := range subs {
		if filter.UserID != "" && sub.UserID != filter.UserID {
			continue
		}
		if filter.ProblemID != "" && sub.ProblemID != filter.ProblemID {
			continue
		}
		if filter.Status != "" && sub.Status != filter.Status {
			continue
		}
		matched = append(matched, sub)
	}
	// ISO-8601 timestamps order lexically; ids break ties for stability.
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].SubmitTime != matched[j].SubmitTime {
			return matched[i].SubmitTime > matched[j].SubmitTime
		}
		return matched[i].SubmissionID > matched[j].SubmissionID
	})

	total := int64(len(matched))
	page, size := normalizePage(filter.Page, filter.PageSize)
	start := (page - 1) * size
	if start >= len(matched) {
		return []*model.Submission{}, total, nil
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

// GetProblem is ProblemRepository.Get. Problems live one file per id so
// provisioning can drop definitions in without touching the store.
func (s *JSONStore) GetProblem(ctx context.Context, problemID string) (*model.Problem, error) {
	if problemID == "" || problemID != filepath.Base(problemID) {
		return nil, appErr.ValidationError("problem_id", "invalid")
	}
	var problem model.Problem
	found, err := readJSONFile(filepath.Join(s.root, problemsDir, problemID+".json"), &problem)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, appErr.Newf(appErr.ProblemNotFound, "problem %s not found", problemID)
	}
	problem.ID = problemID
	return &problem, nil
}

// defaultLanguages seed the store on first use.
func defaultLanguages() map[string]*model.Language {
	return map[string]*model.Language{
		"python": {
			Name:    "python",
			FileExt: ".py",
			RunCmd:  "python3 {src}",
		},
		"cpp": {
			Name:       "cpp",
			FileExt:    ".cpp",
			CompileCmd: "g++ -O2 -o {bin} {src}",
			RunCmd:     "./{bin}",
		},
	}
}

func (s *JSONStore) readLanguages() (map[string]*model.Language, error) {
	langs := map[string]*model.Language{}
	found, err := readJSONFile(filepath.Join(s.root, languagesFile), &langs)
	if err != nil {
		return nil, err
	}
	if !found {
		return defaultLanguages(), nil
	}
	return langs, nil
}

// GetLanguage is LanguageRepository.Get.
func (s *JSONStore) GetLanguage(ctx context.Context, name string) (*model.Language, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	langs, err := s.readLanguages()
	if err != nil {
		return nil, err
	}
	lang, ok := langs[name]
	if !ok {
		return nil, appErr.Newf(appErr.LanguageNotSupported, "language %q is not supported", name)
	}
	return lang, nil
}

// ListLanguages is LanguageRepository.List.
func (s *JSONStore) ListLanguages(ctx context.Context) ([]*model.Language, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	langs, err := s.readLanguages()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(langs))
	for name := range langs {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*model.Language, 0, len(langs))
	for _, name := range names {
		out = append(out, langs[name])
	}
	return out, nil
}

// IsLogPublic reports the problem's case-log visibility flag.
func (s *JSONStore) IsLogPublic(ctx context.Context, problemID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	flags := map[string]bool{}
	if _, err := readJSONFile(filepath.Join(s.root, visibilityFile), &flags); err != nil {
		return false, err
	}
	return flags[problemID], nil
}

// SetLogPublic toggles the problem's case-log visibility flag.
func (s *JSONStore) SetLogPublic(ctx context.Context, problemID string, public bool) error {
	if problemID == "" {
		return appErr.ValidationError("problem_id", "required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	flags := map[string]bool{}
	if _, err := readJSONFile(filepath.Join(s.root, visibilityFile), &flags); err != nil {
		return err
	}
	flags[problemID] = public
	return writeJSONFile(filepath.Join(s.root, visibilityFile), flags)
}
