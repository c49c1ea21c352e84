package main

import (
	"chat-relay/domain/event"
	"chat-relay/sink"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

type renderer struct {
	colours bool
	self    string
}

func (r *renderer) paint(style color.Style, text string) string {
	if !r.colours {
		return text
	}
	return style.Render(text)
}

// line renders one event for the terminal. Empty means nothing to print.
func (r *renderer) line(e event.DomainEvent) string {
	switch e := e.(type) {
	case event.NameAssigned:
		r.self = e.AssignedName
		if e.AssignedName != e.RequestedName {
			return r.paint(color.New(color.FgYellow), fmt.Sprintf("* %q is taken, you are %q", e.RequestedName, e.AssignedName))
		}
		return r.paint(color.New(color.FgYellow), fmt.Sprintf("* you are %q", e.AssignedName))
	case event.MessagePosted:
		at := e.At.Local().Format("15:04:05")
		if e.System {
			return r.paint(color.New(color.FgGray), fmt.Sprintf("[%s] %s", at, e.Text))
		}
		style := color.New(color.FgCyan)
		if e.SenderName == r.self {
			style = color.New(color.FgGreen)
		}
		return fmt.Sprintf("[%s] %s: %s", at, r.paint(style, e.SenderName), e.Text)
	case event.UserTyping:
		return r.paint(color.New(color.FgGray), fmt.Sprintf("%s is typing...", e.Name))
	case event.UserStoppedTyping:
		return ""
	case event.ProtocolError:
		return r.paint(color.New(color.FgRed), fmt.Sprintf("! %s: %s", e.Code, e.Reason))
	default:
		return ""
	}
}

// renderWho prints the names currently connected.
func renderWho(w io.Writer, names []string) {
	table := newTable(w)
	table.SetHeader([]string{"#", "Name"})
	for i, name := range names {
		table.Append([]string{strconv.Itoa(i + 1), name})
	}
	table.Render()
}

// renderSummary prints how many lines each participant wrote during the session.
func renderSummary(w io.Writer, timeline *sink.Timeline) {
	counts := map[string]int{}
	for _, m := range timeline.Messages() {
		if !m.System {
			counts[m.SenderName]++
		}
	}
	senders := make([]string, 0, len(counts))
	for sender := range counts {
		senders = append(senders, sender)
	}
	sort.Strings(senders)

	table := newTable(w)
	table.SetHeader([]string{"Sender", "Messages"})
	for _, sender := range senders {
		table.Append([]string{sender, strconv.Itoa(counts[sender])})
	}
	table.Render()
}

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}
