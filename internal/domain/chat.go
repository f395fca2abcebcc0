package domain

const SystemAccount = "system"

type ChatMessage struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
	Text      string `json:"text"`
	Account   string `json:"account"`
	Sender    bool   `json:"sender"`
	Link      string `json:"link,omitempty"`
}

// InviteType classifies a co-video peer signal.
type InviteType int

const (
	InviteUnknown InviteType = iota
	InviteStudentApply
	InviteTeacherAccept
	InviteTeacherReject
	InviteStudentCancel
	InviteTeacherStop
	InviteStudentStop
)

func (t InviteType) String() string {
	switch t {
	case InviteStudentApply:
		return "studentApply"
	case InviteTeacherAccept:
		return "teacherAccept"
	case InviteTeacherReject:
		return "teacherReject"
	case InviteStudentCancel:
		return "studentCancel"
	case InviteTeacherStop:
		return "teacherStop"
	case InviteStudentStop:
		return "studentStop"
	}
	return "unknown"
}

// Notice is the last peer signal shown to the user.
type Notice struct {
	Reason   string `json:"reason"`
	UserUUID string `json:"userUuid"`
}

const DialogTypeApply = "apply"

type Dialog struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	UserUUID string `json:"userUuid,omitempty"`
	Message  string `json:"message"`
}

// ApplyUser is a student waiting in the hands-up list.
type ApplyUser struct {
	UserName   string `json:"userName"`
	UserUUID   string `json:"userUuid"`
	StreamUUID string `json:"streamUuid"`
	State      bool   `json:"state"`
}
