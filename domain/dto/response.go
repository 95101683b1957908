package dto

// Res is the envelope for error responses.
type Res struct {
	ResponseCode    string      `json:"response_code"`
	ResponseMessage string      `json:"response_message"`
	Data            interface{} `json:"data,omitempty"`
}

func ErrorRes(code, message string) Res {
	return Res{ResponseCode: code, ResponseMessage: message}
}
