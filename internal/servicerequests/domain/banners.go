package domain

import (
	"fmt"
	"strings"
	"time"
)

// Legacy renderings appended to notes next to the typed entries.

const bannerTimeLayout = "2006-01-02 15:04 MST"

// ApprovalBanner renders a customer approval.
func ApprovalBanner(at time.Time, actor string) string {
	return fmt.Sprintf("✅ APPROVED by %s on %s", actor, at.UTC().Format(bannerTimeLayout))
}

// DeclineBanner renders a customer decline with its optional reason.
func DeclineBanner(at time.Time, actor, reason string) string {
	banner := fmt.Sprintf("❌ DECLINED by %s on %s", actor, at.UTC().Format(bannerTimeLayout))
	if strings.TrimSpace(reason) != "" {
		banner += "\nReason: " + reason
	}
	return banner
}

// RescheduleBanner renders a technician's reschedule request.
func RescheduleBanner(at time.Time, actor, reason string) string {
	return fmt.Sprintf("🔁 RESCHEDULE REQUESTED by %s on %s\nReason: %s", actor, at.UTC().Format(bannerTimeLayout), reason)
}

// AppendBlock adds block to text separated by a blank line.
func AppendBlock(text, block string) string {
	if strings.TrimSpace(text) == "" {
		return block
	}
	return strings.TrimRight(text, "\n") + "\n\n" + block
}
