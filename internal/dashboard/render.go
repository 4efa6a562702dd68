package dashboard

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/vadiminshakov/botboard/internal/domain"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MaxOrderRows caps the orders table.
const MaxOrderRows = 300

// Column maps a bot record key to a table header.
type Column struct {
	Key    string
	Header string
}

var (
	HoldingColumns = []Column{
		{"StockCode", "Code"}, {"StockName", "Name"}, {"StockAmt", "Qty"},
		{"StockAvgPrice", "Avg"}, {"StockNowPrice", "Now"},
		{"StockRevenueRate", "P&L %"}, {"StockRevenueMoney", "P&L"},
	}
	StrategyColumns = []Column{
		{"StockCode", "Code"}, {"StockName", "Name"}, {"Status", "Status"},
		{"DayStatus", "DayStatus"}, {"TargetPrice", "Target"},
		{"TryBuyCnt", "TryBuyCnt"}, {"IsTrailingStopSet", "Trailing"},
	}
	// OrderSatus is spelled the way the bot sends it.
	OrderColumns = []Column{
		{"OrderDate", "Date"}, {"OrderTime", "Time"}, {"OrderStock", "Code"},
		{"OrderStockName", "Name"}, {"OrderSide", "Side"}, {"OrderType", "Type"},
		{"OrderSatus", "Status"}, {"OrderAmt", "Qty"}, {"OrderResultAmt", "Filled"},
		{"OrderAvgPrice", "Avg"},
	}
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	danger    = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(highlight).
			Padding(0, 2).
			Bold(true)

	kpiStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(subtle).
			Padding(0, 1).
			Width(22)

	kpiTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	kpiValueStyle = lipgloss.NewStyle().Bold(true)
	dangerStyle   = lipgloss.NewStyle().Foreground(danger).Bold(true)
	openStyle     = lipgloss.NewStyle().Foreground(special).Bold(true)
	sectionStyle  = lipgloss.NewStyle().Bold(true).MarginTop(1)

	printer = message.NewPrinter(language.Korean)
)

// Money formats an amount in won, rounded, with thousands separators.
func Money(v float64) string {
	return printer.Sprintf("%d원", int64(math.Round(v)))
}

// Render draws the whole dashboard for a terminal.
func Render(v View) string {
	var b strings.Builder

	status := "auto refresh"
	if !v.FetchedAt.IsZero() {
		status = "updated " + v.FetchedAt.Format("15:04:05")
	}
	b.WriteString(titleStyle.Render("KOSDAQPI DASHBOARD") + "  " + kpiTitleStyle.Render(status) + "\n")

	if v.Data.Error != "" {
		b.WriteString(dangerStyle.Render("error: "+v.Data.Error) + "\n")
	}

	var snap domain.Snapshot
	hasSnap := v.Data.Latest != nil
	if hasSnap {
		snap = v.Data.Latest.Snapshot
	}

	ts, mode, market := "-", "-", dangerStyle.Render("CLOSE")
	if hasSnap {
		ts = snap.TS
		mode = string(snap.AccountMode)
		if mode == "" {
			mode = "-"
		}
	}
	if snap.MarketOpen {
		market = openStyle.Render("OPEN")
	}

	b.WriteString(kpiRow(
		kpi("Snapshot time", ts),
		kpi("Market", market),
		kpi("Total", Money(snap.TotalMoney)),
		kpi("Stocks", Money(snap.StockMoney)),
		kpi("Cash", Money(snap.RemainMoney)),
		kpi("Unrealized P&L", Money(snap.StockRevenue)),
	))
	b.WriteString("\n")
	b.WriteString(kpiRow(
		kpi("Cumulative return", fmt.Sprintf("%.2f%%", v.Series.CumulativeReturn)),
		kpi("MDD", dangerStyle.Render(fmt.Sprintf("%.2f%%", v.Series.MaxDrawdown))),
		kpi("Exposure", fmt.Sprintf("%.2f", snap.ExposureRate)),
		kpi("InvestCnt", strconv.Itoa(snap.InvestCnt)),
		kpi("CutCnt", strconv.Itoa(snap.CutCnt)),
		kpi("Account", mode),
	))
	b.WriteString("\n")

	if trend := TrendDirection(v.Series.Rows, DefaultTrendPeriod); trend != 0 {
		arrow := openStyle.Render("above")
		if trend < 0 {
			arrow = dangerStyle.Render("below")
		}
		b.WriteString(fmt.Sprintf("equity is %s its EMA(%d)\n", arrow, DefaultTrendPeriod))
	}

	var holdings, strategy, orders []domain.Record
	if hasSnap {
		holdings = v.Data.Latest.Holdings
		strategy = v.Data.Latest.StrategyState
		orders = v.Data.Latest.Orders
	}
	if len(orders) > MaxOrderRows {
		orders = orders[:MaxOrderRows]
	}

	b.WriteString(sectionStyle.Render("Holdings") + "\n" + RecordTable(HoldingColumns, holdings) + "\n")
	b.WriteString(sectionStyle.Render("Strategy state") + "\n" + RecordTable(StrategyColumns, strategy) + "\n")
	b.WriteString(sectionStyle.Render("Recent orders") + "\n" + RecordTable(OrderColumns, orders) + "\n")

	return b.String()
}

func kpi(title, value string) string {
	return kpiStyle.Render(kpiTitleStyle.Render(title) + "\n" + kpiValueStyle.Render(value))
}

func kpiRow(cells ...string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

// RecordTable renders records as a table with the given columns; missing keys render empty.
func RecordTable(cols []Column, records []domain.Record) string {
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.Header
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(subtle)).
		Headers(headers...)

	for _, r := range records {
		row := make([]string, len(cols))
		for i, c := range cols {
			row[i] = Cell(r[c.Key])
		}
		t.Row(row...)
	}
	return t.Render()
}

// Cell renders a record value as text. Whole numbers print without exponent or decimals.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
