/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sioXD/GitLab-TimeTool/internal/domain"
	"github.com/sioXD/GitLab-TimeTool/internal/stats"
)

const telegramChunk = 3800

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+`)
	urlRe   = regexp.MustCompile(`https?://[^\s]+`)
	tokenRe = regexp.MustCompile(`(?i)\b(?:token|secret|password|apikey|api_key|bearer|glpat)[-:=\s]+[A-Za-z0-9\-\._~+/]{8,}\b`)
	aliasRe = regexp.MustCompile(`\buser\d{2,}\b`)
)

// reportFacts is the redacted statistics block handed to the LLM.
type reportFacts struct {
	Days           int                        `json:"days"`
	Group          string                     `json:"group"`
	TotalSpent     float64                    `json:"total_spent_hours"`
	TotalEstimated float64                    `json:"total_estimated_hours"`
	UserHours      map[string]float64         `json:"user_hours"`
	LabelStats     map[string]stats.LabelStat `json:"label_stats"`
	IssuesCreated  map[string]int             `json:"issues_created_per_week"`
	Flow           *stats.FlowPoint           `json:"flow_today,omitempty"`
	TopIssues      []topIssue                 `json:"top_issues"`
}

type topIssue struct {
	Title string             `json:"title"`
	Hours float64            `json:"hours"`
	State string             `json:"state"`
	Users map[string]float64 `json:"shares"`
}

func scrub(s string) string {
	s = emailRe.ReplaceAllString(s, "<email>")
	s = urlRe.ReplaceAllString(s, "<url>")
	s = tokenRe.ReplaceAllString(s, "<secret>")
	return s
}

// nameMasker replaces case-insensitive whole-word occurrences of each user
// name with its alias. Longer names go first so "Anna Berg" is not split by
// "Anna".
func nameMasker(users []string, alias map[string]string) func(string) string {
	names := make([]string, 0, len(users))
	for _, u := range users {
		if strings.TrimSpace(u) != "" {
			names = append(names, u)
		}
	}
	sort.SliceStable(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	res := make([]*regexp.Regexp, len(names))
	for i, u := range names {
		res[i] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(u))
	}
	return func(s string) string {
		for i, re := range res {
			s = replaceWords(s, re, alias[names[i]])
		}
		return s
	}
}

// replaceWords replaces matches of re that are not part of a longer word.
// Word runes are Unicode letters, digits and underscore.
func replaceWords(s string, re *regexp.Regexp, repl string) string {
	var b strings.Builder
	last := 0
	for _, m := range re.FindAllStringIndex(s, -1) {
		before, _ := utf8.DecodeLastRuneInString(s[:m[0]])
		after, _ := utf8.DecodeRuneInString(s[m[1]:])
		if isWordRune(before) || isWordRune(after) {
			continue
		}
		b.WriteString(s[last:m[0]])
		b.WriteString(repl)
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// redactFacts aliases user names (user01, user02, ... in sorted order) and
// scrubs contact details and secrets from issue titles. The returned map
// resolves aliases back to names.
func redactFacts(d *Dashboard, days int) (reportFacts, map[string]string) {
	alias := map[string]string{}
	back := map[string]string{}
	for i, u := range d.Users {
		a := fmt.Sprintf("user%02d", i+1)
		alias[u], back[a] = a, u
	}
	mask := nameMasker(d.Users, alias)
	hideNames := func(s string) string { return mask(scrub(s)) }

	f := reportFacts{
		Days:           days,
		Group:          d.GroupPath,
		TotalSpent:     d.Stats.TotalSpent,
		TotalEstimated: d.Stats.TotalEstimated,
		UserHours:      map[string]float64{},
		LabelStats:     d.Stats.LabelStats,
		IssuesCreated:  map[string]int{},
	}
	for u, h := range d.Stats.UserHours {
		if a, ok := alias[u]; ok {
			f.UserHours[a] = h
		}
	}
	for _, b := range d.Stats.CreatedByWeek {
		n := 0
		for _, c := range b.Counts {
			n += c
		}
		f.IssuesCreated[b.Week] = n
	}
	if n := len(d.Stats.CumulativeFlow); n > 0 {
		p := d.Stats.CumulativeFlow[n-1]
		f.Flow = &p
	}

	var issues []stats.Row
	for _, r := range d.Rows {
		if _, ok := r.Issue(); ok && r.Spent > 0 {
			issues = append(issues, r)
		}
	}
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Spent > issues[j].Spent })
	if len(issues) > 10 {
		issues = issues[:10]
	}
	for _, r := range issues {
		ti := topIssue{Title: hideNames(r.Title), Hours: stats.Round2(r.Spent), State: string(r.State), Users: map[string]float64{}}
		for u, sh := range r.Shares {
			if sh > 0 {
				ti.Users[alias[u]] = stats.Round4(sh)
			}
		}
		f.TopIssues = append(f.TopIssues, ti)
	}
	return f, back
}

func unalias(text string, back map[string]string) string {
	return aliasRe.ReplaceAllStringFunc(text, func(a string) string {
		if name, ok := back[a]; ok {
			return name
		}
		return a
	})
}

// GenerateReport summarizes the last days of work with the LLM and stores
// the result.
func (s *Service) GenerateReport(ctx context.Context, days int) (*domain.Report, error) {
	if s.llm == nil {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY", domain.ErrMissingConfig)
	}
	if days <= 0 {
		days = s.cfg.ReportDays
	}
	d, err := s.Dashboard(ctx, Query{Days: days})
	if err != nil {
		return nil, err
	}
	facts, back := redactFacts(d, days)
	text, err := s.llm.Summarize(ctx, facts)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	r := domain.Report{
		CreatedAt:  s.now(),
		SnapshotID: d.SnapshotID,
		Days:       days,
		Model:      s.llm.Model(),
		Text:       unalias(strings.TrimSpace(text), back),
	}
	id, err := s.store.SaveReport(ctx, r)
	if err != nil {
		s.log.Error().Err(err).Msg("save report failed")
	} else {
		r.ID = id
	}
	s.log.Info().Int("days", days).Str("snapshot", r.SnapshotID).Int("chars", len(r.Text)).Msg("report generated")
	return &r, nil
}

func (s *Service) LatestReport(ctx context.Context) (*domain.Report, error) {
	r, err := s.store.LatestReport(ctx)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, domain.ErrNoReport
	}
	return r, nil
}

func (s *Service) deliver(ctx context.Context, chats []int64, r *domain.Report) {
	if s.tg == nil {
		return
	}
	header := fmt.Sprintf("GitLab TimeTool report, last %d days (%s)\n\n", r.Days, s.cfg.GroupPath)
	for _, chat := range chats {
		for _, p := range chunkText(header+r.Text, telegramChunk) {
			if err := s.tg.SendMessagePlain(ctx, chat, p); err != nil {
				s.log.Error().Err(err).Int64("chat", chat).Msg("telegram send failed")
				break
			}
		}
	}
}

// RunScheduledReport generates the periodic report and sends it to every
// configured chat.
func (s *Service) RunScheduledReport(ctx context.Context) error {
	s.log.Info().Msg("ScheduledReport: start")
	r, err := s.GenerateReport(ctx, s.cfg.ReportDays)
	if err != nil {
		return err
	}
	s.deliver(ctx, s.cfg.TelegramChatIDs, r)
	s.log.Info().Int64("report", r.ID).Msg("ScheduledReport: done")
	return nil
}

// RunOnDemandReport answers a chat command with a report for the last days.
func (s *Service) RunOnDemandReport(ctx context.Context, chatID int64, days int) error {
	if chatID == 0 || s.tg == nil {
		return nil
	}
	r, err := s.GenerateReport(ctx, days)
	if err != nil {
		_ = s.tg.SendMessagePlain(ctx, chatID, "Report failed: "+err.Error())
		return err
	}
	s.deliver(ctx, []int64{chatID}, r)
	return nil
}

// RunOnDemandRefresh reloads the tree and tells the chat what was loaded.
func (s *Service) RunOnDemandRefresh(ctx context.Context, chatID int64) error {
	snap, err := s.Refresh(ctx)
	if chatID == 0 || s.tg == nil {
		return err
	}
	if err != nil {
		_ = s.tg.SendMessagePlain(ctx, chatID, "Refresh failed: "+err.Error())
		return err
	}
	msg := fmt.Sprintf("Refreshed %s: %d rows, %d users, %d labels", s.cfg.GroupPath, len(snap.Rows), len(snap.Users), len(snap.Labels))
	return s.tg.SendMessagePlain(ctx, chatID, msg)
}

// SendHelp replies with the bot commands.
func (s *Service) SendHelp(ctx context.Context, chatID int64) error {
	if chatID == 0 || s.tg == nil {
		return nil
	}
	help := escMarkdownV2("GitLab TimeTool Bot") + "\n" +
		escMarkdownV2("Time spent on the epic tree, per user and label.") + "\n\n" +
		escMarkdownV2("Commands:") + "\n" +
		escMarkdownV2("- /report 7d: report for the last 7 days") + "\n" +
		escMarkdownV2("- /report 30d: report for the last 30 days") + "\n" +
		escMarkdownV2("- /refresh: reload issues from GitLab")
	return s.tg.SendMarkdownV2(ctx, chatID, help)
}

var mdV2 = strings.NewReplacer(
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(", "\\(", ")", "\\)", "~", "\\~", "`", "\\`",
	">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-", "=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}",
	".", "\\.", "!", "\\!",
)

func escMarkdownV2(s string) string { return mdV2.Replace(s) }

// chunkText splits s on line boundaries into pieces of at most max runes.
// Longer lines are hard split.
func chunkText(s string, max int) []string {
	if max <= 0 {
		return []string{s}
	}
	var chunks []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}
	for _, ln := range strings.Split(s, "\n") {
		r := []rune(ln)
		if len(r) > max {
			flush()
			for i := 0; i < len(r); i += max {
				chunks = append(chunks, string(r[i:min(i+max, len(r))]))
			}
			continue
		}
		extra := len(r)
		if curLen > 0 {
			extra++
		}
		if curLen+extra > max {
			flush()
			extra = len(r)
		}
		if curLen > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(ln)
		curLen += extra
	}
	flush()
	if len(chunks) == 0 {
		chunks = []string{""}
	}
	return chunks
}
