package server

import "github.com/betbot/enginectl/internal/domain"

// configReadResponse 配置读取结果：{ success, config?, error? }
type configReadResponse struct {
	Success    bool              `json:"success"`
	Config     *string           `json:"config,omitempty"`
	Revision   uint64            `json:"revision,omitempty"`
	Provenance domain.Provenance `json:"provenance,omitempty"`
	Error      string            `json:"error,omitempty"`
	Code       domain.ErrorKind  `json:"code,omitempty"`

	// DiscardedDraft 本次读取覆盖掉的未保存编辑内容
	DiscardedDraft *string `json:"discarded_draft,omitempty"`
}

// configWriteRequest 整份配置提交
type configWriteRequest struct {
	Config *string `json:"config" binding:"required"`
}

// configWriteResponse 配置写入结果：{ success, message?, error? }
type configWriteResponse struct {
	Success  bool             `json:"success"`
	Message  string           `json:"message,omitempty"`
	Revision uint64           `json:"revision,omitempty"`
	Error    string           `json:"error,omitempty"`
	Code     domain.ErrorKind `json:"code,omitempty"`
}

type draftResponse struct {
	Success  bool                   `json:"success"`
	Baseline *domain.ConfigDocument `json:"baseline,omitempty"`
	Draft    *domain.ConfigDocument `json:"draft,omitempty"`
	Dirty    bool                   `json:"dirty"`
	Saving   bool                   `json:"saving"`
	Error    string                 `json:"error,omitempty"`
	Code     domain.ErrorKind       `json:"code,omitempty"`
}

// botResponse 生命周期命令结果：成功返回状态，失败附带错误描述
type botResponse struct {
	Success   bool             `json:"success"`
	Status    domain.BotStatus `json:"status"`
	Error     string           `json:"error,omitempty"`
	Code      domain.ErrorKind `json:"code,omitempty"`
	Retryable bool             `json:"retryable,omitempty"`
}
