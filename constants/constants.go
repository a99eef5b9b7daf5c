package constants

const (
	EVENT_TYPE_CHANNEL_OPENED  = "ChannelOpened"
	EVENT_TYPE_CHANNEL_CLOSED  = "ChannelClosed"
	EVENT_TYPE_INVOICE_CREATED = "InvoiceCreated"
	EVENT_TYPE_INVOICE_SETTLED = "InvoiceSettled"

	SEVERITY_INFO     = "Info"
	SEVERITY_WARNING  = "Warning"
	SEVERITY_CRITICAL = "Critical"

	NOTIFICATION_TYPE_WEBHOOK = "Webhook"
	NOTIFICATION_TYPE_DISCORD = "Discord"

	USER_ROLE_ADMIN  = "Admin"
	USER_ROLE_MEMBER = "Member"
)
