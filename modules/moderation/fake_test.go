package moderation

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"modbot/modules/db"
)

type call struct {
	Op     string
	ChatID int64
	UserID int64
	Until  time.Time
}

// fakeAPI records calls and keeps member states in memory.
type fakeAPI struct {
	mu      sync.Mutex
	calls   []call
	members map[memberKey]Member
	// errs makes an op fail for a chat: errs["ban"][chatID]
	errs         map[string]map[int64]error
	memberLookup int
	sent         []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{members: map[memberKey]Member{}, errs: map[string]map[int64]error{}}
}

func (f *fakeAPI) setMember(chatID, userID int64, status MemberStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[memberKey{chatID, userID}] = Member{UserID: userID, Status: status, CanSendMessages: status != StatusRestricted}
}

func (f *fakeAPI) failOn(op string, chatID int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs[op] == nil {
		f.errs[op] = map[int64]error{}
	}
	f.errs[op][chatID] = err
}

func (f *fakeAPI) record(op string, chatID, userID int64, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[op][chatID]; err != nil {
		return err
	}
	f.calls = append(f.calls, call{op, chatID, userID, until})
	key := memberKey{chatID, userID}
	switch op {
	case "ban":
		f.members[key] = Member{UserID: userID, Status: StatusKicked}
	case "unban":
		f.members[key] = Member{UserID: userID, Status: StatusLeft}
	case "mute":
		f.members[key] = Member{UserID: userID, Status: StatusRestricted}
	case "unmute":
		f.members[key] = Member{UserID: userID, Status: StatusMember, CanSendMessages: true}
	}
	return nil
}

func (f *fakeAPI) Ban(chatID, userID int64, until time.Time) error {
	return f.record("ban", chatID, userID, until)
}

func (f *fakeAPI) Unban(chatID, userID int64) error {
	return f.record("unban", chatID, userID, time.Time{})
}

func (f *fakeAPI) Mute(chatID, userID int64, until time.Time) error {
	return f.record("mute", chatID, userID, until)
}

func (f *fakeAPI) Unmute(chatID, userID int64) error {
	return f.record("unmute", chatID, userID, time.Time{})
}

func (f *fakeAPI) Member(chatID, userID int64) (*Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memberLookup++
	if err := f.errs["member"][chatID]; err != nil {
		return nil, err
	}
	m, ok := f.members[memberKey{chatID, userID}]
	if !ok {
		m = Member{UserID: userID, Status: StatusMember, CanSendMessages: true}
	}
	return &m, nil
}

func (f *fakeAPI) DeleteMessage(chatID int64, msgID int32) error {
	return f.record("delete", chatID, int64(msgID), time.Time{})
}

func (f *fakeAPI) SendMessage(chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, fmt.Sprintf("%d:%s", chatID, text))
	return nil
}

func (f *fakeAPI) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ops []string
	for _, c := range f.calls {
		ops = append(ops, c.Op)
	}
	return ops
}

func (f *fakeAPI) callsFor(op string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

const (
	testBot   = int64(100)
	testStaff = int64(200)
	testChat  = int64(-1001)
)

func newTestEngine(t *testing.T) (*Engine, *fakeAPI) {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "mod.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	api := newFakeAPI()
	e := New(store, api, zaptest.NewLogger(t), Options{
		BotID:           testBot,
		Staff:           func(id int64) bool { return id == testStaff },
		StrictGban:      true,
		GbanConcurrency: 4,
	})
	return e, api
}
