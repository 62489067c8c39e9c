package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/lshigami/testcert/internal/model"
	"github.com/lshigami/testcert/internal/repository"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var errStoreDown = errors.New("store unavailable")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- tests and questions ---

type fakeTestRepo struct {
	mu     sync.Mutex
	nextID uint
	tests  map[uint]*model.Test
}

func newFakeTestRepo() *fakeTestRepo {
	return &fakeTestRepo{tests: make(map[uint]*model.Test)}
}

func (r *fakeTestRepo) Create(_ context.Context, test *model.Test) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.tests {
		if existing.Title == test.Title {
			return gorm.ErrDuplicatedKey
		}
	}
	r.nextID++
	test.ID = r.nextID
	for i := range test.Questions {
		test.Questions[i].ID = test.ID*100 + uint(i) + 1
		test.Questions[i].TestID = test.ID
	}
	stored := *test
	stored.Questions = append([]model.Question(nil), test.Questions...)
	r.tests[test.ID] = &stored
	return nil
}

func (r *fakeTestRepo) FindByID(_ context.Context, id uint) (*model.Test, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	test, ok := r.tests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *test
	out.Questions = nil
	return &out, nil
}

func (r *fakeTestRepo) FindByIDWithQuestions(_ context.Context, id uint) (*model.Test, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	test, ok := r.tests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *test
	out.Questions = append([]model.Question(nil), test.Questions...)
	return &out, nil
}

func (r *fakeTestRepo) FindAllPublishedWithQuestionCount(_ context.Context) ([]repository.TestWithQuestionCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.TestWithQuestionCount
	for _, test := range r.tests {
		if test.IsPublished {
			t := *test
			t.Questions = nil
			out = append(out, repository.TestWithQuestionCount{Test: t, QuestionCount: len(test.Questions)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTestRepo) Publish(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	test, ok := r.tests[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	test.IsPublished = true
	return nil
}

func (r *fakeTestRepo) delete(id uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tests, id)
}

type fakeQuestionRepo struct {
	tests *fakeTestRepo
	err   error
}

func (r *fakeQuestionRepo) FindByTestID(ctx context.Context, testID uint) ([]model.Question, error) {
	if r.err != nil {
		return nil, r.err
	}
	test, err := r.tests.FindByIDWithQuestions(ctx, testID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []model.Question{}, nil
	}
	if err != nil {
		return nil, err
	}
	return test.Questions, nil
}

// --- attempts ---

type fakeAttemptRepo struct {
	mu          sync.Mutex
	nextID      uint
	attempts    map[uint]*model.TestAttempt
	finalizeErr error
	finalized   map[uint]int
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{attempts: make(map[uint]*model.TestAttempt), finalized: make(map[uint]int)}
}

func copyAttempt(a *model.TestAttempt) *model.TestAttempt {
	out := *a
	answers := make(map[uint]string)
	for k, v := range a.AnswerMap() {
		answers[k] = v
	}
	out.Answers = datatypes.NewJSONType(answers)
	out.QuestionOrder = append(datatypes.JSONSlice[uint](nil), a.QuestionOrder...)
	return &out
}

func (r *fakeAttemptRepo) Create(_ context.Context, attempt *model.TestAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	attempt.ID = r.nextID
	r.attempts[attempt.ID] = copyAttempt(attempt)
	return nil
}

func (r *fakeAttemptRepo) FindByID(_ context.Context, id uint) (*model.TestAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	attempt, ok := r.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return copyAttempt(attempt), nil
}

func (r *fakeAttemptRepo) FindInProgress(_ context.Context) ([]model.TestAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.TestAttempt
	for _, attempt := range r.attempts {
		if attempt.CompletedAt == nil {
			out = append(out, *copyAttempt(attempt))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeAttemptRepo) UpdateProgress(_ context.Context, id uint, answers map[uint]string, questionOrder []uint, currentIndex int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	attempt, ok := r.attempts[id]
	if !ok || attempt.CompletedAt != nil {
		return gorm.ErrRecordNotFound
	}
	snapshot := make(map[uint]string, len(answers))
	for k, v := range answers {
		snapshot[k] = v
	}
	attempt.Answers = datatypes.NewJSONType(snapshot)
	attempt.QuestionOrder = append(datatypes.JSONSlice[uint](nil), questionOrder...)
	attempt.CurrentQuestionIndex = currentIndex
	return nil
}

func (r *fakeAttemptRepo) Finalize(_ context.Context, attempt *model.TestAttempt) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalizeErr != nil {
		return false, r.finalizeErr
	}
	stored, ok := r.attempts[attempt.ID]
	if !ok || stored.CompletedAt != nil {
		return false, nil
	}
	stored.Answers = attempt.Answers
	stored.Score = attempt.Score
	stored.TotalPoints = attempt.TotalPoints
	stored.Percentage = attempt.Percentage
	stored.CorrectAnswers = attempt.CorrectAnswers
	stored.Passed = attempt.Passed
	stored.TimeSpentMinutes = attempt.TimeSpentMinutes
	stored.Status = model.AttemptStatusCompleted
	stored.CompletedAt = attempt.CompletedAt
	r.finalized[attempt.ID]++
	return true, nil
}

func (r *fakeAttemptRepo) Abandon(_ context.Context, id uint, closedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.attempts[id]
	if !ok || stored.CompletedAt != nil {
		return false, nil
	}
	stored.Status = model.AttemptStatusAbandoned
	stored.CompletedAt = &closedAt
	return true, nil
}

func (r *fakeAttemptRepo) FindAllByTestAndUser(_ context.Context, testID uint, userID *uint) ([]model.TestAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.TestAttempt
	for _, attempt := range r.attempts {
		if attempt.TestID == testID && (userID == nil || attempt.UserID == *userID) {
			out = append(out, *copyAttempt(attempt))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeAttemptRepo) put(attempt *model.TestAttempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if attempt.ID == 0 {
		r.nextID++
		attempt.ID = r.nextID
	}
	r.attempts[attempt.ID] = copyAttempt(attempt)
}

func (r *fakeAttemptRepo) finalizeCount(id uint) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finalized[id]
}

// --- certificates ---

type fakeCertificateRepo struct {
	mu        sync.Mutex
	nextID    uint
	certs     map[uint]*model.Certificate
	createErr error
	updateErr error
}

func newFakeCertificateRepo() *fakeCertificateRepo {
	return &fakeCertificateRepo{certs: make(map[uint]*model.Certificate)}
}

func (r *fakeCertificateRepo) Create(_ context.Context, cert *model.Certificate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.certs {
		if existing.TestAttemptID == cert.TestAttemptID || existing.VerificationCode == cert.VerificationCode {
			return gorm.ErrDuplicatedKey
		}
	}
	r.nextID++
	cert.ID = r.nextID
	stored := *cert
	r.certs[cert.ID] = &stored
	return nil
}

func (r *fakeCertificateRepo) find(match func(*model.Certificate) bool) (*model.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cert := range r.certs {
		if match(cert) {
			out := *cert
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeCertificateRepo) FindByID(_ context.Context, id uint) (*model.Certificate, error) {
	return r.find(func(c *model.Certificate) bool { return c.ID == id })
}

func (r *fakeCertificateRepo) FindByTestAttemptID(_ context.Context, attemptID uint) (*model.Certificate, error) {
	return r.find(func(c *model.Certificate) bool { return c.TestAttemptID == attemptID })
}

func (r *fakeCertificateRepo) FindByVerificationCode(_ context.Context, code string) (*model.Certificate, error) {
	return r.find(func(c *model.Certificate) bool { return c.VerificationCode == code })
}

func (r *fakeCertificateRepo) ExistsByVerificationCode(_ context.Context, code string) (bool, error) {
	_, err := r.find(func(c *model.Certificate) bool { return c.VerificationCode == code })
	return err == nil, nil
}

func (r *fakeCertificateRepo) FindAllByUser(_ context.Context, userID uint) ([]model.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Certificate
	for _, cert := range r.certs {
		if cert.UserID == userID {
			out = append(out, *cert)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeCertificateRepo) Update(_ context.Context, id uint, patch map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	cert, ok := r.certs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for key, value := range patch {
		switch key {
		case "status":
			cert.Status = value.(string)
		case "file_path":
			if value == nil {
				cert.FilePath = nil
			} else {
				path := value.(string)
				cert.FilePath = &path
			}
		case "template_type":
			cert.TemplateType = value.(string)
		case "qr_code_data":
			cert.QRCodeData = value.(string)
		case "is_valid":
			cert.IsValid = value.(bool)
		case "revoked_at":
			if value == nil {
				cert.RevokedAt = nil
			} else {
				at := value.(time.Time)
				cert.RevokedAt = &at
			}
		case "revoked_reason":
			if value == nil {
				cert.RevokedReason = nil
			} else {
				reason := value.(string)
				cert.RevokedReason = &reason
			}
		case "email_sent":
			cert.EmailSent = value.(bool)
		default:
			panic("fakeCertificateRepo: unexpected patch key " + key)
		}
	}
	return nil
}

func (r *fakeCertificateRepo) IncrementCounter(_ context.Context, id uint, column string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cert, ok := r.certs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	switch column {
	case "view_count":
		cert.ViewCount++
	case "download_count":
		cert.DownloadCount++
	default:
		return repository.ErrUnknownCounter
	}
	return nil
}

func (r *fakeCertificateRepo) get(id uint) *model.Certificate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := *r.certs[id]
	return &out
}

// --- audit ---

type fakeAuditRepo struct {
	mu      sync.Mutex
	nextID  uint
	entries []model.CertificateAuditLog
	err     error
}

func (r *fakeAuditRepo) Create(_ context.Context, entry *model.CertificateAuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.nextID++
	entry.ID = r.nextID
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeAuditRepo) FindByCertificateID(_ context.Context, certificateID uint) ([]model.CertificateAuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.CertificateAuditLog
	for _, entry := range r.entries {
		if entry.CertificateID == certificateID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r *fakeAuditRepo) actions(certificateID uint) []model.AuditAction {
	entries, _ := r.FindByCertificateID(context.Background(), certificateID)
	out := make([]model.AuditAction, len(entries))
	for i, entry := range entries {
		out[i] = entry.Action
	}
	return out
}

// --- collaborators ---

type fakeRenderer struct {
	err       error
	calls     int
	templates []string
}

func (r *fakeRenderer) Render(data model.CertificateData, templateType, _, code string, _ time.Time) ([]byte, error) {
	r.calls++
	r.templates = append(r.templates, templateType)
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.3 " + templateType + " " + code + " " + data.RecipientName), nil
}

type fakeQR struct {
	err     error
	content []string
}

func (q *fakeQR) Generate(content string) (string, error) {
	q.content = append(q.content, content)
	if q.err != nil {
		return "", q.err
	}
	return "data:image/png;base64,iVBORw0KGgo=", nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	err  error
	sent []CertificateNotification
}

func (n *fakeNotifier) CertificateIssued(_ context.Context, msg CertificateNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *fakeNotifier) Close() error { return nil }
