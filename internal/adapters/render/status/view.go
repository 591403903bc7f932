package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/nearby-cli/internal/application"
	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

const healthBarWidth = 20

type RenderOptions struct {
	Now time.Time
	// MaxFailures caps how many failed targets a batch view lists.
	MaxFailures int
}

func renderView(statuses []application.AccountStatus, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Nearby Accounts"),
		s.header.Render(fmt.Sprintf("accounts: %d", len(statuses))),
	}

	if len(statuses) == 0 {
		lines = append(lines, s.empty.Render("No accounts configured."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, status := range statuses {
		lines = append(lines, s.section.Render(renderAccount(status, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderAccount(status application.AccountStatus, opts RenderOptions, s styles) string {
	parts := []string{
		s.account.Render(accountTitle(status.Account)),
		sessionLine(status, s),
	}
	parts = append(parts, proxyLines(status.Proxies, opts, s)...)
	parts = append(parts, connectionLines(status.Connection, opts, s)...)

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func accountTitle(account domain.Account) string {
	name := strings.TrimSpace(account.Name)
	if name == "" || name == string(account.ID) {
		return fmt.Sprintf("%s (%s)", account.ID, account.Username)
	}
	return fmt.Sprintf("%s (%s, %s)", name, account.ID, account.Username)
}

func sessionLine(status application.AccountStatus, s styles) string {
	label := s.key.Render("session:")
	switch {
	case status.Session.State == domain.SessionBanned:
		return label + " " + s.warning.Render(status.Message)
	case status.LoggedIn:
		return label + " " + s.ok.Render(status.Message)
	default:
		return label + " " + s.detail.Render(status.Message)
	}
}

func proxyLines(stats domain.ProxyStats, opts RenderOptions, s styles) []string {
	label := s.key.Render("proxies:")
	if stats.Total == 0 {
		return []string{label + " " + s.detail.Render("direct (none configured)")}
	}

	summary := fmt.Sprintf("%d eligible, %d cooling, %d disabled of %d", stats.Eligible, stats.Cooling, stats.Disabled, stats.Total)
	lines := []string{label + " " + s.detail.Render(summary)}
	for _, endpoint := range stats.Endpoints {
		lines = append(lines, endpointLine(endpoint, endpoint.Address == stats.Current, opts, s))
	}
	return lines
}

func endpointLine(endpoint domain.ProxyEndpoint, current bool, opts RenderOptions, s styles) string {
	marker := "  "
	if current {
		marker = "* "
	}

	health := clampPercent(endpoint.Health * 100)
	percentStyle := lipgloss.NewStyle().Foreground(interpolateColor(health, 0, 100))

	line := lipgloss.JoinHorizontal(
		lipgloss.Top,
		marker,
		renderProgressBar(health, healthBarWidth, s),
		" ",
		percentStyle.Render(fmt.Sprintf("%3.0f%%", health)),
		" ",
		s.detail.Render(domain.RedactProxyAddress(endpoint.Address)),
	)

	switch {
	case endpoint.Disabled:
		line += " " + s.warning.Render("[disabled]")
	case !opts.Now.IsZero() && endpoint.InCooldown(opts.Now):
		line += " " + s.warning.Render(fmt.Sprintf("[cooling %s]", formatRemaining(endpoint.CooldownUntil.Sub(opts.Now))))
	case opts.Now.IsZero() && !endpoint.CooldownUntil.IsZero():
		line += " " + s.meta.Render("[cooldown until "+endpoint.CooldownUntil.Format(time.RFC3339)+"]")
	}
	if endpoint.Successes > 0 || endpoint.Failures > 0 {
		line += " " + s.meta.Render(fmt.Sprintf("ok %d / failed %d", endpoint.Successes, endpoint.Failures))
	}
	return line
}

func connectionLines(conn domain.ConnectionStatus, opts RenderOptions, s styles) []string {
	var lines []string
	if !conn.LastSuccessAt.IsZero() {
		lines = append(lines, s.key.Render("last success:")+" "+s.meta.Render(formatWhen(conn.LastSuccessAt, opts.Now)))
	}
	if !conn.LastFailureAt.IsZero() {
		lines = append(lines, s.key.Render("last failure:")+" "+s.meta.Render(formatWhen(conn.LastFailureAt, opts.Now))+" "+s.warning.Render(conn.LastFailure))
	}
	return lines
}

func renderBatch(title string, report application.BulkReport, opts RenderOptions, s styles) string {
	result := report.Result
	counts := result.Counts

	lines := []string{
		s.title.Render(title),
		s.header.Render(fmt.Sprintf("targets: %d in %s", counts.Total, result.Duration.Round(time.Millisecond))),
	}

	succeededPercent := 0.0
	if counts.Total > 0 {
		succeededPercent = float64(counts.Succeeded) / float64(counts.Total) * 100
	}
	lines = append(lines, lipgloss.JoinHorizontal(
		lipgloss.Top,
		renderProgressBar(succeededPercent, healthBarWidth, s),
		" ",
		s.ok.Render(fmt.Sprintf("%d succeeded", counts.Succeeded)),
		" ",
		s.meta.Render(fmt.Sprintf("%d retryable, %d fatal, %d banned, %d timed out", counts.Retryable, counts.Fatal, counts.Banned, counts.TimedOut)),
	))

	if result.Halted {
		lines = append(lines, s.warning.Render("halted: session banned, remaining targets were not dispatched"))
	}

	failed := result.Failed()
	if len(failed) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	limit := opts.MaxFailures
	if limit <= 0 || limit > len(failed) {
		limit = len(failed)
	}
	failures := []string{s.key.Render("failures:")}
	for _, target := range failed[:limit] {
		failures = append(failures, fmt.Sprintf("  %s %s", targetLabel(target, report.Labels), s.warning.Render(result.Outcomes[target].String())))
	}
	if hidden := len(failed) - limit; hidden > 0 {
		failures = append(failures, s.empty.Render(fmt.Sprintf("  ... and %d more", hidden)))
	}
	lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, failures...)))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func targetLabel(target domain.TargetID, labels map[domain.TargetID]string) string {
	if label, ok := labels[target]; ok && label != "" {
		return fmt.Sprintf("%s (%s)", label, target)
	}
	return string(target)
}

func renderProgressBar(filledPercent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	fraction := clampPercent(filledPercent) / 100.0
	filled := int(math.Round(float64(width) * fraction))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	empty := width - filled
	fillSegment := s.barFill.Render(strings.Repeat("=", filled))
	emptySegment := s.barEmpty.Render(strings.Repeat("-", empty))

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		fillSegment,
		emptySegment,
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func formatWhen(at, now time.Time) string {
	if now.IsZero() {
		return at.Format(time.RFC3339)
	}
	if at.After(now) {
		return "just now"
	}
	return formatRemaining(now.Sub(at)) + " ago"
}

func formatRemaining(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(math.Ceil(d.Seconds())))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(math.Ceil(d.Minutes())))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(math.Ceil(d.Hours())))
	default:
		return fmt.Sprintf("%dd", int(math.Ceil(d.Hours()/24)))
	}
}

func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	// ANSI 256 greyscale ramp from faded 240 to bright 255.
	baseColor := 240.0
	targetColor := 255.0
	colorCode := int(baseColor + (targetColor-baseColor)*normalized)

	return lipgloss.Color(fmt.Sprintf("%d", colorCode))
}
