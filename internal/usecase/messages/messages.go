package messages

import (
	"fmt"
	"strings"
	"time"
)

// Catalog renders every participant-facing line with the configured prefix.
type Catalog struct {
	Prefix string
}

func (c Catalog) line(format string, args ...any) string {
	return c.Prefix + fmt.Sprintf(format, args...)
}

func (c Catalog) Incapacitated(cooldown time.Duration) string {
	return c.line("You have fallen. You can be revived in %s.", FormatDuration(cooldown))
}

func (c Catalog) AlreadyIncapacitated() string {
	return c.line("You are already down; nothing new was recorded.")
}

func (c Catalog) StillCoolingDown(remaining time.Duration) string {
	return c.line("You are still cooling down. %s to go before you can revive.", FormatDuration(remaining))
}

func (c Catalog) TimeRemaining(remaining time.Duration) string {
	return c.line("%s left until you can revive.", FormatDuration(remaining))
}

func (c Catalog) RevivalAvailable() []string {
	return []string{
		c.line("You can revive now!"),
		c.line("Use \"revive\" to come back."),
	}
}

func (c Catalog) Revived() string {
	return c.line("You have been revived. Have fun!")
}

func (c Catalog) RevivedBy(method string) string {
	return c.line("Revived via %s.", method)
}

func (c Catalog) NothingToRevive() string {
	return c.line("You are not waiting for a revive.")
}

func (c Catalog) NotCoolingDown() string {
	return c.line("You are not cooling down; there is nothing to pay for.")
}

func (c Catalog) PayPrompt(needs string, window time.Duration) []string {
	return []string{
		c.line("Reviving now costs: %s", needs),
		c.line("Repeat the command within %s to confirm the payment.", FormatDuration(window)),
	}
}

func (c Catalog) InsufficientBalance() string {
	return c.line("You do not have enough points to pay for a revive.")
}

func (c Catalog) StoreError() string {
	return c.line("Could not read your revive state, please contact an administrator.")
}

func (c Catalog) NoPermission() string {
	return c.line("You do not have permission to use this command.")
}

func (c Catalog) ParticipantsOnly() string {
	return c.line("Only participants can use this command.")
}

func (c Catalog) ResetUsage() string {
	return c.line("Usage: reset <name>")
}

func (c Catalog) UnknownParticipant(name string) string {
	return c.line("No data found for %s.", name)
}

func (c Catalog) ResetDone(name string) string {
	return c.line("Reset the revive cooldown of %s.", name)
}

func (c Catalog) ResetNotice() string {
	return c.line("An administrator has reset your revive cooldown.")
}

func (c Catalog) Help(admin bool) []string {
	lines := []string{
		c.line("===== Hardcore help ====="),
		c.line("help - show this help"),
		c.line("revive - come back once your cooldown is over"),
		c.line("revive pay - pay to come back right away"),
	}
	if admin {
		lines = append(lines,
			c.line("===== Admin commands ====="),
			c.line("reset <name> - clear a participant's revive cooldown"),
		)
	}
	return lines
}

// FormatDuration renders the two most significant units, e.g. "45s",
// "5m 30s", "1h 5m", "2d 3h".
func FormatDuration(d time.Duration) string {
	seconds := int64((d + time.Second - 1) / time.Second)
	if seconds < 0 {
		seconds = 0
	}

	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return joinUnits(seconds/60, "m", seconds%60, "s")
	case seconds < 86400:
		return joinUnits(seconds/3600, "h", seconds%3600/60, "m")
	default:
		return joinUnits(seconds/86400, "d", seconds%86400/3600, "h")
	}
}

func joinUnits(major int64, majorUnit string, minor int64, minorUnit string) string {
	if minor == 0 {
		return fmt.Sprintf("%d%s", major, majorUnit)
	}
	return fmt.Sprintf("%d%s %d%s", major, majorUnit, minor, minorUnit)
}

// FormatClock renders seconds as HH:MM:SS; hours are not wrapped at 24.
func FormatClock(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds%3600/60, seconds%60)
}

// FormatNeeds renders "currency: amount" pairs in the given order, or
// "none" when nothing is required.
func FormatNeeds(order []string, needs map[string]int64) string {
	if len(order) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(order))
	for _, currency := range order {
		parts = append(parts, fmt.Sprintf("%s: %d", currency, needs[currency]))
	}
	return strings.Join(parts, ", ")
}

// FormatUnits renders seconds as 00h00m00s.
func FormatUnits(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02dh%02dm%02ds", seconds/3600, seconds%3600/60, seconds%60)
}
