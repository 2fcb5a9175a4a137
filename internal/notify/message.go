package notify

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.Indonesian)

// Rupiah formats an amount the way Indonesian donors read it, e.g. Rp100.000.
func Rupiah(amount int64) string {
	return printer.Sprintf("Rp%d", amount)
}

// Text renders the human-readable body of e.
func Text(e Event) string {
	switch e.Type {
	case DonationSubmitted:
		return printer.Sprintf("Donasi baru %s dari %s untuk %q menunggu verifikasi.",
			Rupiah(e.Amount), e.DonorName, e.CampaignTitle)
	case DonationApproved:
		return printer.Sprintf("Donasi %s untuk %q telah diverifikasi. Terima kasih!",
			Rupiah(e.Amount), e.CampaignTitle)
	case DonationRejected:
		if e.Reason != "" {
			return printer.Sprintf("Donasi %s untuk %q ditolak: %s",
				Rupiah(e.Amount), e.CampaignTitle, e.Reason)
		}

		return printer.Sprintf("Donasi %s untuk %q ditolak.", Rupiah(e.Amount), e.CampaignTitle)
	}

	return string(e.Type)
}
