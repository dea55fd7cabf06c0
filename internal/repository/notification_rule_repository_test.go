package repository_test

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"taskpulse/internal/model"
	"taskpulse/internal/repository"
	"taskpulse/internal/testutil"
)

type matcherFixture struct {
	db      *gorm.DB
	account model.Account
	owner   model.User
	ops     model.Board
	sales   model.Board
	rules   *repository.NotificationRuleRepository
}

func newMatcherFixture(t *testing.T) matcherFixture {
	t.Helper()
	db := testutil.NewDB(t)
	account := testutil.Account(t, db, "Acme", "")
	return matcherFixture{
		db:      db,
		account: account,
		owner:   testutil.User(t, db, account, "owner"),
		ops:     testutil.Board(t, db, account, "Ops"),
		sales:   testutil.Board(t, db, account, "Sales"),
		rules:   repository.NewNotificationRuleRepository(db),
	}
}

func (f matcherFixture) rule(t *testing.T, rule model.NotificationRule) model.NotificationRule {
	t.Helper()
	ctx := context.Background()
	rule.AccountID = f.account.ID
	rule.UserID = f.owner.ID
	rule.Name = "rule"
	rule.Frequency = model.RuleFrequencyDaily
	rule.Active = true
	if err := f.rules.Create(ctx, &rule); err != nil {
		t.Fatalf("create rule: %v", err)
	}
	stored, err := f.rules.FindByID(ctx, f.owner.ID, rule.ID)
	if err != nil {
		t.Fatalf("find rule: %v", err)
	}
	return *stored
}

func titles(tasks []model.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return out
}

func sameTitles(got []model.Task, want ...string) bool {
	g := titles(got)
	if len(g) != len(want) {
		return false
	}
	for i := range g {
		if g[i] != want[i] {
			return false
		}
	}
	return true
}

func intPtr(v int) *int { return &v }

func TestMatchingTasks(t *testing.T) {
	f := newMatcherFixture(t)
	ctx := context.Background()
	today := model.Date{Year: 2024, Month: time.March, Day: 4}
	day := func(offset int) *model.Date {
		d := today.AddDays(offset)
		return &d
	}
	seed := func(title string, board model.Board, due *model.Date, tags ...string) {
		testutil.Task(t, f.db, f.account, testutil.TaskOpts{Title: title, Board: board, DueOn: due, Published: true, Tags: tags})
	}

	seed("ops today", f.ops, day(0), "urgent", "client")
	seed("ops tomorrow", f.ops, day(1))
	seed("sales today", f.sales, day(0), "urgent")
	seed("sales next week", f.sales, day(7), "client")
	seed("no due date", f.ops, nil, "urgent")
	testutil.Task(t, f.db, f.account, testutil.TaskOpts{Title: "draft", Board: f.ops, DueOn: day(0)})
	testutil.Task(t, f.db, f.account, testutil.TaskOpts{Title: "closed", Board: f.ops, DueOn: day(0), Published: true, Closed: true})

	other := testutil.Account(t, f.db, "Other", "")
	testutil.Task(t, f.db, other, testutil.TaskOpts{Title: "foreign", DueOn: day(0), Published: true, Tags: []string{"urgent"}})

	urgent := testutil.Tag(t, f.db, f.account, "urgent")
	client := testutil.Tag(t, f.db, f.account, "client")

	tests := []struct {
		name string
		rule model.NotificationRule
		want []string
	}{
		{name: "no filters", rule: model.NotificationRule{}, want: []string{"ops today", "sales today", "ops tomorrow", "sales next week"}},
		{name: "due today", rule: model.NotificationRule{DueInDays: intPtr(0)}, want: []string{"ops today", "sales today"}},
		{name: "due in seven", rule: model.NotificationRule{DueInDays: intPtr(7)}, want: []string{"sales next week"}},
		{name: "board", rule: model.NotificationRule{Boards: []model.Board{f.ops}}, want: []string{"ops today", "ops tomorrow"}},
		{name: "two boards due today", rule: model.NotificationRule{Boards: []model.Board{f.ops, f.sales}, DueInDays: intPtr(0)}, want: []string{"ops today", "sales today"}},
		{name: "tag", rule: model.NotificationRule{Tags: []model.Tag{urgent}}, want: []string{"ops today", "sales today"}},
		{name: "any of two tags is distinct", rule: model.NotificationRule{Tags: []model.Tag{urgent, client}}, want: []string{"ops today", "sales today", "sales next week"}},
		{name: "board and tag", rule: model.NotificationRule{Boards: []model.Board{f.sales}, Tags: []model.Tag{client}}, want: []string{"sales next week"}},
		{name: "nothing due in two days", rule: model.NotificationRule{DueInDays: intPtr(2)}, want: []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rule := f.rule(t, tc.rule)
			got, err := f.rules.MatchingTasks(ctx, rule, today)
			if err != nil {
				t.Fatalf("match: %v", err)
			}
			if !sameTitles(got, tc.want...) {
				t.Fatalf("matched %v, want %v", titles(got), tc.want)
			}
		})
	}
}

func TestMatchingTasksIgnoresForeignFilters(t *testing.T) {
	f := newMatcherFixture(t)
	other := testutil.Account(t, f.db, "Other", "")
	foreignBoard := testutil.Board(t, f.db, other, "Theirs")
	testutil.Task(t, f.db, f.account, testutil.TaskOpts{Title: "mine", Board: f.ops, DueOn: testutil.Day(2024, time.March, 4), Published: true})

	// A filter that only names another account's board matches nothing.
	rule := model.NotificationRule{AccountID: f.account.ID, Boards: []model.Board{foreignBoard}}
	got, err := f.rules.MatchingTasks(context.Background(), rule, model.Date{Year: 2024, Month: time.March, Day: 4})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("matched %v through a foreign board", titles(got))
	}
}

func TestEachActiveBatch(t *testing.T) {
	f := newMatcherFixture(t)
	ctx := context.Background()
	f.rule(t, model.NotificationRule{})
	weekly := model.NotificationRule{AccountID: f.account.ID, UserID: f.owner.ID, Name: "weekly", Frequency: model.RuleFrequencyWeekly, Active: true}
	if err := f.rules.Create(ctx, &weekly); err != nil {
		t.Fatalf("create: %v", err)
	}
	off := model.NotificationRule{AccountID: f.account.ID, UserID: f.owner.ID, Name: "off", Frequency: model.RuleFrequencyDaily, Active: false}
	if err := f.rules.Create(ctx, &off); err != nil {
		t.Fatalf("create: %v", err)
	}

	var got []model.NotificationRule
	err := f.rules.EachActiveBatch(ctx, model.RuleFrequencyDaily, 10, func(batch []model.NotificationRule) error {
		got = append(got, batch...)
		return nil
	})
	if err != nil {
		t.Fatalf("each active: %v", err)
	}
	if len(got) != 1 || got[0].Frequency != model.RuleFrequencyDaily || got[0].User.ID != f.owner.ID || got[0].Account.ID != f.account.ID {
		t.Fatalf("unexpected rules: %+v", got)
	}
}
