package statuschange

const (
	statusUpdateTitle    = "Account Status Update"
	statusUpdateBodyText = "Your account status has been updated to "

	// MessageTypeStatusUpdate is the data.type of every status notification.
	MessageTypeStatusUpdate = "STATUS_UPDATE"
)

// NewStatusUpdateMessage builds the notification announcing a new account status.
func NewStatusUpdateMessage(status Field, target string) NotificationMessage {
	value := status.String()
	return NotificationMessage{
		Title: statusUpdateTitle,
		Body:  statusUpdateBodyText + value,
		Data: MessageData{
			Type:   MessageTypeStatusUpdate,
			Status: value,
		},
		Target: target,
	}
}
