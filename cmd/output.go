package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Taichi-iskw/yt-rank/internal/model"
	"github.com/Taichi-iskw/yt-rank/internal/service/collector"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

func validateOutputFormat(format string) error {
	switch format {
	case formatTable, formatJSON:
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s (use table or json)", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	result, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format result: %w", err)
	}
	_, err = fmt.Fprintln(w, string(result))
	return err
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderChannels(w io.Writer, channels []*model.Channel) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Rank", "±", "ID", "Name", "Category", "Country", "Subscribers", "Views", "Weekly Δ", "Weekly %", "Monthly %", "Engagement %"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, WidthMax: 32},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
		{Number: 9, Align: text.AlignRight},
	})

	for _, ch := range channels {
		t.AppendRow(table.Row{
			ch.Rank,
			formatRankChange(ch.RankChange),
			ch.ID,
			ch.Name,
			ch.Category,
			ch.Country,
			formatCount(ch.SubscriberCount),
			formatCount(ch.ViewCount),
			formatSigned(ch.WeeklySubscriberDelta),
			fmt.Sprintf("%.2f", ch.WeeklySubscriberRate),
			fmt.Sprintf("%.2f", ch.MonthlySubscriberRate),
			fmt.Sprintf("%.2f", ch.EngagementRate),
		})
	}
	t.Render()
}

func renderChannel(w io.Writer, ch *model.Channel) {
	t := newTable(w)
	t.AppendRows([]table.Row{
		{"ID", ch.ID},
		{"External ID", ch.ExternalID},
		{"Name", ch.Name},
		{"Handle", ch.Handle},
		{"Category", ch.Category},
		{"Country", ch.Country},
		{"Subscribers", formatCount(ch.SubscriberCount)},
		{"Views", formatCount(ch.ViewCount)},
		{"Videos", formatCount(ch.VideoCount)},
		{"Weekly subscribers", fmt.Sprintf("%s (%.2f%%)", formatSigned(ch.WeeklySubscriberDelta), ch.WeeklySubscriberRate)},
		{"Weekly views", fmt.Sprintf("%s (%.2f%%)", formatSigned(ch.WeeklyViewDelta), ch.WeeklyViewRate)},
		{"Monthly subscribers", fmt.Sprintf("%s (%.2f%%)", formatSigned(ch.MonthlySubscriberDelta), ch.MonthlySubscriberRate)},
		{"Monthly views", fmt.Sprintf("%s (%.2f%%)", formatSigned(ch.MonthlyViewDelta), ch.MonthlyViewRate)},
		{"Engagement", fmt.Sprintf("%.2f%%", ch.EngagementRate)},
		{"Rank", fmt.Sprintf("%d (%s)", ch.Rank, formatRankChange(ch.RankChange))},
		{"Last updated", formatTime(ch.LastUpdated)},
	})
	t.Render()
}

func renderGroups(w io.Writer, by string, groups []model.GroupCount) {
	t := newTable(w)
	t.AppendHeader(table.Row{by, "Channels"})
	var total int64
	for _, g := range groups {
		t.AppendRow(table.Row{g.Key, g.Count})
		total += g.Count
	}
	t.AppendFooter(table.Row{"Total", total})
	t.Render()
}

func renderVideos(w io.Writer, videos []*model.Video) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Title", "Published", "Views", "Likes", "Comments"})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, WidthMax: 48}})
	for _, v := range videos {
		t.AppendRow(table.Row{v.ID, v.Title, formatTime(v.PublishedAt), formatCount(v.ViewCount), formatCount(v.LikeCount), formatCount(v.CommentCount)})
	}
	t.Render()
}

func renderCollectionResult(w io.Writer, r collector.CollectionResult) {
	t := newTable(w)
	exhausted := "-"
	if len(r.ExhaustedCredentials) > 0 {
		exhausted = fmt.Sprint(r.ExhaustedCredentials)
	}
	t.AppendRows([]table.Row{
		{"Run", r.RunID},
		{"Attempted", r.Attempted},
		{"Updated", r.Updated},
		{"Created", r.Created},
		{"Missing", r.Missing},
		{"Skipped (error)", r.SkippedDueToError},
		{"Skipped (quota)", r.SkippedDueToQuota},
		{"Exhausted credentials", exhausted},
		{"Duration", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond)},
	})
	t.Render()
}

func formatCount(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := n < 0
	if neg {
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		return "-" + s
	}
	return s
}

func formatSigned(n int64) string {
	if n > 0 {
		return "+" + formatCount(n)
	}
	return formatCount(n)
}

func formatRankChange(n int) string {
	switch {
	case n > 0:
		return "▲" + strconv.Itoa(n)
	case n < 0:
		return "▼" + strconv.Itoa(-n)
	default:
		return "-"
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
