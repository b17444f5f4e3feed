package auth

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type Verify2FADTO struct {
	UserID string `json:"user_id"`
	Code   string `json:"code"`
}

type RegisterDTO struct {
	Email            string `json:"email"`
	Name             string `json:"name"`
	Password         string `json:"password"`
	Role             string `json:"role"`
	Grade            int    `json:"grade"`
	PreferredSubject string `json:"preferred_subject"`
	SchoolID         int64  `json:"school_id"`
	InvitationToken  string `json:"invitation_token"`
}

type LogoutDTO struct {
	UserID string `json:"user_id"`
}

type ForgotPasswordDTO struct {
	Email string `json:"email"`
}

type ResetPasswordDTO struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type InvitationDTO struct {
	Role        string `json:"role"`
	ExpiryHours int    `json:"expiry_hours"`
}

// ValidationError represents a simple validation error from DTO validation.
type ValidationError struct {
	Msg string
}

func (v ValidationError) Error() string { return v.Msg }

// Validate checks required fields and returns a ValidationError on failure.
func (d LoginDTO) Validate() error {
	if d.Username == "" {
		return ValidationError{Msg: "username is required"}
	}
	if d.Password == "" {
		return ValidationError{Msg: "password is required"}
	}
	if d.Role == "" {
		return ValidationError{Msg: "role is required"}
	}
	return nil
}

func (d Verify2FADTO) Validate() error {
	if d.UserID == "" {
		return ValidationError{Msg: "user_id is required"}
	}
	if d.Code == "" {
		return ValidationError{Msg: "code is required"}
	}
	return nil
}

func (d RegisterDTO) Validate() error {
	if d.Email == "" {
		return ValidationError{Msg: "email is required"}
	}
	if d.Name == "" {
		return ValidationError{Msg: "name is required"}
	}
	if d.Password == "" {
		return ValidationError{Msg: "password is required"}
	}
	if d.Role == "" {
		return ValidationError{Msg: "role is required"}
	}
	return nil
}

func (d ResetPasswordDTO) Validate() error {
	if d.Token == "" {
		return ValidationError{Msg: "token is required"}
	}
	if d.NewPassword == "" {
		return ValidationError{Msg: "new_password is required"}
	}
	return nil
}

func (d InvitationDTO) Validate() error {
	if d.Role == "" {
		return ValidationError{Msg: "role is required"}
	}
	return nil
}
