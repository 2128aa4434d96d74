package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sioXD/GitLab-TimeTool/internal/domain"
)

type fakeLLM struct {
	reply string
	err   error
	facts []byte
}

func (f *fakeLLM) Summarize(ctx context.Context, facts any) (string, error) {
	f.facts, _ = json.Marshal(facts)
	return f.reply, f.err
}

func (f *fakeLLM) Model() string { return "test-model" }

type sentMessage struct {
	chat     int64
	text     string
	markdown bool
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (n *fakeNotifier) SendMessagePlain(ctx context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{chat: chatID, text: text})
	return nil
}

func (n *fakeNotifier) SendMarkdownV2(ctx context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{chat: chatID, text: text, markdown: true})
	return nil
}

func TestGenerateReport_AliasesUsersForTheModel(t *testing.T) {
	llm := &fakeLLM{reply: "  user01 logged most of the week; user02 closed C.  "}
	svc, store := newTestService(sampleFetcher(), llm, nil)

	r, err := svc.GenerateReport(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "U1 logged most of the week; U2 closed C.", r.Text)
	assert.Equal(t, 7, r.Days)
	assert.Equal(t, "test-model", r.Model)
	assert.NotZero(t, r.ID)

	facts := string(llm.facts)
	assert.NotContains(t, facts, `"U1"`)
	assert.NotContains(t, facts, "U2")
	assert.Contains(t, facts, "Fix login for user01")
	assert.Contains(t, facts, `"user02":2`)

	latest, err := store.LatestReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, r.Text, latest.Text)
}

func TestGenerateReport_RequiresLLM(t *testing.T) {
	svc, _ := newTestService(sampleFetcher(), nil, nil)
	_, err := svc.GenerateReport(context.Background(), 7)
	assert.ErrorIs(t, err, domain.ErrMissingConfig)
}

func TestGenerateReport_ModelError(t *testing.T) {
	svc, _ := newTestService(sampleFetcher(), &fakeLLM{err: errors.New("rate limited")}, nil)
	_, err := svc.GenerateReport(context.Background(), 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "summarize")

	_, err = svc.LatestReport(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoReport)
}

func TestRunScheduledReport_DeliversToChats(t *testing.T) {
	tg := &fakeNotifier{}
	svc, _ := newTestService(sampleFetcher(), &fakeLLM{reply: "quiet week"}, tg)
	svc.cfg.TelegramChatIDs = []int64{5, 6}

	require.NoError(t, svc.RunScheduledReport(context.Background()))
	require.Len(t, tg.sent, 2)
	assert.Equal(t, int64(5), tg.sent[0].chat)
	assert.Equal(t, int64(6), tg.sent[1].chat)
	assert.True(t, strings.HasPrefix(tg.sent[0].text, "GitLab TimeTool report, last 7 days (grp)"))
	assert.True(t, strings.HasSuffix(tg.sent[0].text, "quiet week"))
}

func TestRunOnDemandReport_ReportsFailureToChat(t *testing.T) {
	tg := &fakeNotifier{}
	svc, _ := newTestService(sampleFetcher(), &fakeLLM{err: errors.New("down")}, tg)

	require.Error(t, svc.RunOnDemandReport(context.Background(), 9, 30))
	require.Len(t, tg.sent, 1)
	assert.Equal(t, int64(9), tg.sent[0].chat)
	assert.Contains(t, tg.sent[0].text, "Report failed")
}

func TestRunOnDemandRefresh_Confirms(t *testing.T) {
	tg := &fakeNotifier{}
	svc, _ := newTestService(sampleFetcher(), nil, tg)

	require.NoError(t, svc.RunOnDemandRefresh(context.Background(), 9))
	require.Len(t, tg.sent, 1)
	assert.Equal(t, "Refreshed grp: 5 rows, 2 users, 2 labels", tg.sent[0].text)
}

func TestSendHelp_EscapesMarkdown(t *testing.T) {
	tg := &fakeNotifier{}
	svc, _ := newTestService(sampleFetcher(), nil, tg)

	require.NoError(t, svc.SendHelp(context.Background(), 3))
	require.Len(t, tg.sent, 1)
	assert.True(t, tg.sent[0].markdown)
	assert.Contains(t, tg.sent[0].text, `\- /report 7d: report for the last 7 days`)
}

func TestScrub_MasksContactsAndSecrets(t *testing.T) {
	out := scrub("mail alice@example.com, see https://gitlab.com/x token=abcdEFGH1234")
	assert.NotContains(t, out, "alice@example.com")
	assert.NotContains(t, out, "https://gitlab.com/x")
	assert.NotContains(t, out, "abcdEFGH1234")
	assert.Contains(t, out, "<email>")
	assert.Contains(t, out, "<url>")
	assert.Contains(t, out, "<secret>")
}

func TestNameMasker_UnicodeNames(t *testing.T) {
	users := []string{"Anna", "Anna Berg", "Nivek", "Ömer"}
	alias := map[string]string{"Anna": "user01", "Anna Berg": "user02", "Nivek": "user03", "Ömer": "user04"}
	mask := nameMasker(users, alias)

	assert.Equal(t, "Review by user04 and user03", mask("Review by Ömer and Nivek"))
	assert.Equal(t, "user04's fix, not Ömerlin or Nivek_2", mask("ömer's fix, not Ömerlin or Nivek_2"))
	assert.Equal(t, "user02 pairs with user01", mask("Anna Berg pairs with Anna"))
}

func TestUnalias_LeavesUnknownAliases(t *testing.T) {
	back := map[string]string{"user01": "Alice", "user10": "Bob"}
	assert.Equal(t, "Alice and Bob, not user100", unalias("user01 and user10, not user100", back))
}

func TestChunkText(t *testing.T) {
	assert.Equal(t, []string{""}, chunkText("", 10))
	assert.Equal(t, []string{"abc\ndef", "ghij"}, chunkText("abc\ndef\nghij", 8))
	assert.Equal(t, []string{"ab", "abcd", "ef"}, chunkText("ab\nabcdef", 4))
	assert.Equal(t, []string{"äöü"}, chunkText("äöü", 3))
}
