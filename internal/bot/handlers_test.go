// End-to-end dialogue tests: login, lockout, upload, view, logout.
package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"photokeep/internal/artifacts"
	"photokeep/internal/auth"
	"photokeep/internal/db"
	"photokeep/internal/gate"
	"photokeep/internal/session"
	"photokeep/internal/telegram"
)

// fakeAPI records outbound traffic and serves canned photo downloads.
type fakeAPI struct {
	mu     sync.Mutex
	texts  []string
	photos [][]byte
	files  map[string][]byte
}

func (f *fakeAPI) GetUpdates(ctx context.Context, offset, timeoutSec int) ([]telegram.Update, error) {
	return nil, nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeAPI) SendPhoto(ctx context.Context, chatID int64, payload []byte, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos = append(f.photos, payload)
	return nil
}

func (f *fakeAPI) FilePath(ctx context.Context, fileID string) (string, error) {
	return "photos/" + fileID + ".jpg", nil
}

func (f *fakeAPI) Download(ctx context.Context, filePath string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[filePath], nil
}

func (f *fakeAPI) lastText(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		t.Fatalf("no replies sent")
	}
	return f.texts[len(f.texts)-1]
}

func (f *fakeAPI) photoCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.photos)
}

// harness bundles a bot over real collaborators with a movable clock.
type harness struct {
	bot   *Bot
	api   *fakeAPI
	db    *db.DB
	store *artifacts.Store
	now   time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	d, err := db.Open(ctx, t.TempDir()+"/test.db")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	for _, u := range []struct{ login, pass, name, role string }{
		{"alice", "hunter2", "Alice", db.RoleOperator},
		{"root", "passw0rd", "Boss", db.RoleAdmin},
	} {
		hash, err := auth.HashPassword(u.pass, auth.DefaultParams())
		if err != nil {
			t.Fatalf("HashPassword: %v", err)
		}
		if _, err := d.CreateUser(ctx, u.login, hash, u.name, u.role); err != nil {
			t.Fatalf("CreateUser(%s): %v", u.login, err)
		}
	}

	h := &harness{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return h.now }

	tokens, err := auth.NewTokenService([]byte("test-key"))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	tokens.WithClock(clock)

	h.api = &fakeAPI{files: map[string][]byte{}}
	h.db = d
	h.store = artifacts.New(afero.NewMemMapFs())

	b, err := New(Options{
		API:    h.api,
		Gate:   gate.New(d, nil).WithClock(clock),
		Tokens: tokens,
		Store:  h.store,
		Audit:  d,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b.now = clock
	h.bot = b
	return h
}

func (h *harness) text(chat int64, text string) {
	h.bot.handleMessage(context.Background(), &telegram.Message{
		Chat: telegram.Chat{ID: chat},
		Text: text,
	})
}

func (h *harness) photo(chat int64, fileID string, payload []byte) {
	h.api.mu.Lock()
	h.api.files["photos/"+fileID+".jpg"] = payload
	h.api.mu.Unlock()
	h.bot.handleMessage(context.Background(), &telegram.Message{
		Chat:  telegram.Chat{ID: chat},
		Photo: []telegram.PhotoSize{{FileID: "small"}, {FileID: fileID}},
	})
}

func (h *harness) login(t *testing.T, chat int64, login, pass string) {
	t.Helper()
	h.text(chat, "/start")
	h.text(chat, login)
	h.text(chat, pass)
	if got := h.api.lastText(t); !strings.HasPrefix(got, "Welcome") {
		t.Fatalf("login reply = %q", got)
	}
}

// TestLoginFlow walks anonymous → awaiting_login → awaiting_password
// → authenticated.
func TestLoginFlow(t *testing.T) {
	h := newHarness(t)
	h.text(1, "/start")
	if got := h.api.lastText(t); got != "Enter your login:" {
		t.Fatalf("start reply = %q", got)
	}
	h.text(1, "alice")
	if got := h.api.lastText(t); got != "Now enter the password:" {
		t.Fatalf("login reply = %q", got)
	}
	h.text(1, "hunter2")
	if got := h.api.lastText(t); got != "Welcome, Alice!\nUse /help for the command list." {
		t.Fatalf("password reply = %q", got)
	}
	h.text(1, "/help")
	if got := h.api.lastText(t); !strings.Contains(got, "/send") {
		t.Fatalf("help reply = %q", got)
	}
}

// TestWrongPasswordReturnsToLogin keeps the dialogue going after a miss.
func TestWrongPasswordReturnsToLogin(t *testing.T) {
	h := newHarness(t)
	h.text(1, "/start")
	h.text(1, "alice")
	h.text(1, "nope")
	if got := h.api.lastText(t); !strings.Contains(got, "Enter your login") {
		t.Fatalf("denied reply = %q", got)
	}
	// The dialogue restarts at login capture.
	h.text(1, "alice")
	h.text(1, "hunter2")
	if got := h.api.lastText(t); !strings.HasPrefix(got, "Welcome") {
		t.Fatalf("retry reply = %q", got)
	}
}

// TestLockoutSuspendsOnlyThisSession locks one chat for 60 seconds
// while another chat keeps working.
func TestLockoutSuspendsOnlyThisSession(t *testing.T) {
	h := newHarness(t)
	h.text(1, "/start")
	h.text(1, "alice")
	h.text(1, "bad1")
	h.text(1, "alice")
	h.text(1, "bad2")
	h.text(1, "alice")
	h.text(1, "bad3")
	if got := h.api.lastText(t); got != replyLocked {
		t.Fatalf("lockout reply = %q", got)
	}

	h.text(1, "/start")
	if got := h.api.lastText(t); got != replyStillLocked {
		t.Fatalf("locked session reply = %q", got)
	}

	// A different session is unaffected.
	h.login(t, 2, "alice", "hunter2")

	// After the deadline the locked session may log in again.
	h.now = h.now.Add(61 * time.Second)
	h.login(t, 1, "alice", "hunter2")
}

// TestSendAndUploadPhoto selects a destination and stores a photo.
func TestSendAndUploadPhoto(t *testing.T) {
	h := newHarness(t)
	h.login(t, 1, "alice", "hunter2")

	h.text(1, "/send fttx/Moscow/Lenina/5/12")
	if got := h.api.lastText(t); !strings.Contains(got, "fttx/Moscow/Lenina/5/12") {
		t.Fatalf("send reply = %q", got)
	}

	h.photo(1, "file77", []byte("jpeg-bytes"))
	if got := h.api.lastText(t); !strings.Contains(got, "saved") {
		t.Fatalf("photo reply = %q", got)
	}

	sess := h.bot.sessions.Get(1)
	ids, err := h.store.List(*sess.Path)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected 1 stored photo, got %v", ids)
	}
	b, err := h.store.Read(ids[0])
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(b) != "jpeg-bytes" {
		t.Fatalf("stored payload = %q", b)
	}
}

// TestSendWithoutArgsPromptsForPath covers the path-entry sub-state.
func TestSendWithoutArgsPromptsForPath(t *testing.T) {
	h := newHarness(t)
	h.login(t, 1, "alice", "hunter2")

	h.text(1, "/send")
	if got := h.api.lastText(t); !strings.Contains(got, "destination path") {
		t.Fatalf("prompt = %q", got)
	}
	h.text(1, "to/City/Main/1/basement")
	if got := h.api.lastText(t); !strings.Contains(got, "to/City/Main/1/basement") {
		t.Fatalf("path entry reply = %q", got)
	}
	if sess := h.bot.sessions.Get(1); sess.Phase != session.ReadyForUpload {
		t.Fatalf("phase = %v", sess.Phase)
	}
}

// TestPathValidationReplies maps each parse failure to its message.
func TestPathValidationReplies(t *testing.T) {
	h := newHarness(t)
	h.login(t, 1, "alice", "hunter2")

	h.text(1, "/send fttx/Moscow/Lenina")
	if got := h.api.lastText(t); !strings.Contains(got, "Wrong path format") {
		t.Fatalf("malformed reply = %q", got)
	}
	h.text(1, "/send xyz/A/B/1/2")
	if got := h.api.lastText(t); !strings.Contains(got, "Unknown category") {
		t.Fatalf("category reply = %q", got)
	}
	h.text(1, "/send fttx/../etc/5/12")
	if got := h.api.lastText(t); !strings.Contains(got, "Illegal directory name") {
		t.Fatalf("illegal reply = %q", got)
	}
	h.photo(1, "f", []byte("x"))
	if got := h.api.lastText(t); !strings.Contains(got, "/send") {
		t.Fatalf("photo without destination reply = %q", got)
	}
}

// TestViewRequiresAdmin rejects operators without state change.
func TestViewRequiresAdmin(t *testing.T) {
	h := newHarness(t)
	h.login(t, 1, "alice", "hunter2")

	before := h.bot.sessions.Get(1).Phase
	h.text(1, "/view fttx/Moscow/Lenina/5/12")
	if got := h.api.lastText(t); got != replyNotAuthorized {
		t.Fatalf("view reply = %q", got)
	}
	if after := h.bot.sessions.Get(1).Phase; after != before {
		t.Fatalf("rejection changed phase: %v -> %v", before, after)
	}
}

// TestAdminViewSendsStoredPhotos lists and returns images for admins.
func TestAdminViewSendsStoredPhotos(t *testing.T) {
	h := newHarness(t)
	h.login(t, 1, "root", "passw0rd")

	h.text(1, "/view fttx/Moscow/Lenina/5/12")
	if got := h.api.lastText(t); !strings.Contains(got, "does not exist") {
		t.Fatalf("missing dir reply = %q", got)
	}

	h.text(1, "/send fttx/Moscow/Lenina/5/12")
	h.text(1, "/view fttx/Moscow/Lenina/5/12")
	if got := h.api.lastText(t); !strings.Contains(got, "No images") {
		t.Fatalf("empty dir reply = %q", got)
	}

	h.photo(1, "file1", []byte("one"))
	h.photo(1, "file2", []byte("two"))
	h.text(1, "/view fttx/Moscow/Lenina/5/12")
	if n := h.api.photoCount(); n != 2 {
		t.Fatalf("expected 2 photos sent, got %d", n)
	}
}

// TestLogoutInvalidatesToken rejects guarded commands right after
// /exit, even though the token has not expired.
func TestLogoutInvalidatesToken(t *testing.T) {
	h := newHarness(t)
	h.login(t, 1, "alice", "hunter2")

	h.text(1, "/exit")
	if got := h.api.lastText(t); !strings.Contains(got, "logged out") {
		t.Fatalf("exit reply = %q", got)
	}
	h.text(1, "/send fttx/Moscow/Lenina/5/12")
	if got := h.api.lastText(t); got != replyNoToken {
		t.Fatalf("post-logout reply = %q", got)
	}
}

// TestExpiredTokenForcesReauth rejects a session one hour on.
func TestExpiredTokenForcesReauth(t *testing.T) {
	h := newHarness(t)
	h.login(t, 1, "alice", "hunter2")

	h.now = h.now.Add(61 * time.Minute)
	h.text(1, "/help")
	if got := h.api.lastText(t); got != replyStaleToken {
		t.Fatalf("expired reply = %q", got)
	}
	if h.bot.sessions.Get(1).Token != "" {
		t.Fatalf("dead token left in session")
	}
}

// TestStartMidFlowIsNoOp keeps the session's place in the dialogue.
func TestStartMidFlowIsNoOp(t *testing.T) {
	h := newHarness(t)
	h.text(1, "/start")
	h.text(1, "alice")
	h.text(1, "/start")
	if got := h.api.lastText(t); !strings.Contains(got, "already in progress") {
		t.Fatalf("mid-flow start reply = %q", got)
	}
	// The password step is still live.
	h.text(1, "hunter2")
	if got := h.api.lastText(t); !strings.HasPrefix(got, "Welcome") {
		t.Fatalf("password after re-start reply = %q", got)
	}
}
