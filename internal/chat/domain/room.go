package domain

const (
	// UnknownTour group name when neither the tour nor the booking has a title
	UnknownTour = "Unknown Tour"
	// DefaultImage group image when the tour has none
	DefaultImage = "/default.jpg"
)

// Group one paid booking as shown in the user's room list
type Group struct {
	ID       string `json:"id"`
	TourName string `json:"tourName"`
	Image    string `json:"image"`
}

// Identity who is behind a connection
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// RoomNoticeText join announcement broadcast to the room
func RoomNoticeText(username string) string {
	return username + " joined the room"
}
