package backend

import "encoding/json"

type UserProfile struct {
	ID      string   `json:"id"`
	Email   string   `json:"email"`
	Name    string   `json:"name"`
	Picture string   `json:"picture"`
	Roles   []string `json:"roles"`
}

type ValidateResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	User    *UserProfile `json:"user,omitempty"`
}

type LocationData struct {
	Country string `json:"country"`
	Region  string `json:"region"`
	County  string `json:"county"`
}

type SimpleSession struct {
	ID            int64  `json:"id"`
	UserID        int64  `json:"user_id"`
	SelectedTuner int64  `json:"selected_tuner"`
	FailureReason string `json:"failure_reason"`
	InitTS        string `json:"init_ts"`
	EndTS         string `json:"end_ts"`
}

type SessionResponse struct {
	Message  string         `json:"message,omitempty"`
	Session  *SimpleSession `json:"session,omitempty"`
	Location *LocationData  `json:"location,omitempty"`
}

type Channel struct {
	ChannelID   string `json:"channel_id"`
	HLSURL      string `json:"hls_url"`
	MediaURL    string `json:"media_url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

type ChannelList struct {
	Channels []string `json:"channels"`
	Total    int      `json:"total"`
}

// decodeCount accepts {"count":N}, {"total":N} or a bare number.
func decodeCount(raw json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var obj struct {
		Count *int `json:"count"`
		Total *int `json:"total"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return 0, err
	}
	switch {
	case obj.Count != nil:
		return *obj.Count, nil
	case obj.Total != nil:
		return *obj.Total, nil
	}
	return 0, errNoCount
}
