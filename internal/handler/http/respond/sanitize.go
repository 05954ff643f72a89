package respond

import (
	"regexp"
)

// Channel credentials show up in transport errors verbatim: a failed Telegram
// call quotes the request URL including the bot token, webhook rejections
// quote the webhook URL, and database errors can quote the DSN.
var (
	// Telegram botトークン（"<digits>:<35文字のキー>" 形式）
	botTokenPattern = regexp.MustCompile(`\d+:[A-Za-z0-9_-]{30,}`)

	// Webhook URLはパス部分が秘密情報
	slackWebhookPattern   = regexp.MustCompile(`hooks\.slack\.com/services/[A-Za-z0-9/_-]+`)
	discordWebhookPattern = regexp.MustCompile(`discord(?:app)?\.com/api/webhooks/[A-Za-z0-9/_-]+`)

	// DSN内のパスワード
	dsnPasswordPattern = regexp.MustCompile(`://([^:/@\s]+):([^@\s]+)@`)
)

// SanitizeError masks channel credentials in an error message before it is
// logged or shown.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	msg = botTokenPattern.ReplaceAllString(msg, "****:****")
	msg = slackWebhookPattern.ReplaceAllString(msg, "hooks.slack.com/services/****")
	msg = discordWebhookPattern.ReplaceAllString(msg, "discord.com/api/webhooks/****")
	msg = dsnPasswordPattern.ReplaceAllString(msg, "://$1:****@")
	return msg
}
