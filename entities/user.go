package entities

type User struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}
