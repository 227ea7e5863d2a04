package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"panel/internal/errs"
)

// AccountType 账号类型
type AccountType string

const (
	AccountTypeUser       AccountType = "user"
	AccountTypeEnterprise AccountType = "enterprise"
)

// Channel 二次验证渠道
type Channel string

const (
	ChannelAuthenticator Channel = "authenticator"
	ChannelWhatsApp      Channel = "whatsapp"
	ChannelEmail         Channel = "email"
)

// channelPriority 自动选择渠道时的固定优先级
var channelPriority = []Channel{ChannelAuthenticator, ChannelWhatsApp, ChannelEmail}

// ParseChannel 解析渠道名称
func ParseChannel(s string) (Channel, error) {
	switch c := Channel(strings.ToLower(strings.TrimSpace(s))); c {
	case ChannelAuthenticator, ChannelWhatsApp, ChannelEmail:
		return c, nil
	}
	return "", fmt.Errorf("unknown channel %q", s)
}

// Channels 各二次验证渠道的启用状态
type Channels struct {
	Authenticator bool `json:"authenticator"`
	WhatsApp      bool `json:"whatsapp"`
	Email         bool `json:"email"`
}

// Any 是否至少启用一个渠道
func (c Channels) Any() bool {
	return c.Authenticator || c.WhatsApp || c.Email
}

// Enabled 指定渠道是否启用
func (c Channels) Enabled(ch Channel) bool {
	switch ch {
	case ChannelAuthenticator:
		return c.Authenticator
	case ChannelWhatsApp:
		return c.WhatsApp
	case ChannelEmail:
		return c.Email
	}
	return false
}

// Preferred 按 authenticator > whatsapp > email 选择首个已启用的渠道
func (c Channels) Preferred() (Channel, bool) {
	for _, ch := range channelPriority {
		if c.Enabled(ch) {
			return ch, true
		}
	}
	return "", false
}

// Enterprise 企业账号信息
type Enterprise struct {
	Name      string `json:"name,omitempty"`
	Siret     string `json:"siret,omitempty"`
	Tva       string `json:"tva,omitempty"`
	Siege     string `json:"siege,omitempty"`
	Validated bool   `json:"validated"`
}

// Identity 当前用户身份，只在网关边界解析一次
type Identity struct {
	ID               string      `json:"id"`
	Email            string      `json:"email"`
	FirstName        string      `json:"firstName"`
	LastName         string      `json:"lastName"`
	AccountType      AccountType `json:"accountType"`
	IsAdmin          bool        `json:"isAdmin"`
	TwoFactor        Channels    `json:"twoFactor"`
	WhatsAppNumber   string      `json:"whatsappNumber,omitempty"`
	EmailAuthAddress string      `json:"emailAuthAddress,omitempty"`
	Phone            string      `json:"phone,omitempty"`
	Address          string      `json:"address,omitempty"`
	ProfilePicture   string      `json:"profilePicture,omitempty"`
	WalletAmount     float64     `json:"walletAmount,omitempty"`
	Enterprise       *Enterprise `json:"enterprise,omitempty"`
}

// FullName 显示名称
func (i *Identity) FullName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// Clone 返回副本，缓存与状态之间不共享指针
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	if i.Enterprise != nil {
		e := *i.Enterprise
		c.Enterprise = &e
	}
	return &c
}

// YesNo 服务端使用 "yes"/"no" 字符串表示布尔值
type YesNo bool

// UnmarshalJSON 只接受 "yes"、"no"、空串、null 以及 JSON 布尔值
func (b *YesNo) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "null", `""`, "false":
		*b = false
		return nil
	case "true":
		*b = true
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("yes/no flag: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes":
		*b = true
	case "no", "":
		*b = false
	default:
		return fmt.Errorf("yes/no flag: unexpected value %q", s)
	}
	return nil
}

// MarshalJSON 按服务端格式输出
func (b YesNo) MarshalJSON() ([]byte, error) {
	if b {
		return []byte(`"yes"`), nil
	}
	return []byte(`"no"`), nil
}

// IdentityPayload 身份接口的原始响应
type IdentityPayload struct {
	ID               string  `json:"id"`
	Email            string  `json:"email"`
	Firstname        string  `json:"firstname"`
	Lastname         string  `json:"lastname"`
	AccountType      string  `json:"accountType"`
	TwoFA            YesNo   `json:"2FA"`
	WhatsAppMFA      YesNo   `json:"whatsapp_mfa"`
	EmailMFA         YesNo   `json:"email_mfa"`
	PhoneNumber      string  `json:"phone_number,omitempty"`
	EmailAuthAddress string  `json:"email_2fa_address,omitempty"`
	Phone            string  `json:"phone,omitempty"`
	Address          string  `json:"address,omitempty"`
	ProfilePicture   string  `json:"profile_picture,omitempty"`
	WalletAmount     float64 `json:"wallet_amount,omitempty"`
	EnterpriseName   string  `json:"enterprise_name,omitempty"`
	EnterpriseSiret  string  `json:"enterprise_siret,omitempty"`
	EnterpriseTva    string  `json:"enterprise_tva,omitempty"`
	EnterpriseSiege  string  `json:"enterprise_siege,omitempty"`
	EnterpriseValid  YesNo   `json:"enterprise_is_validated,omitempty"`
	Roles            struct {
		Admin bool `json:"admin"`
	} `json:"roles"`
}

// Channels 从原始响应中提取渠道启用状态
func (p *IdentityPayload) Channels() Channels {
	return Channels{
		Authenticator: bool(p.TwoFA),
		WhatsApp:      bool(p.WhatsAppMFA),
		Email:         bool(p.EmailMFA),
	}
}

// Identity 显式字段映射为 Identity
func (p *IdentityPayload) Identity() (*Identity, error) {
	if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Email) == "" {
		return nil, errs.ErrMalformedPayload
	}

	accountType := AccountTypeUser
	if AccountType(p.AccountType) == AccountTypeEnterprise {
		accountType = AccountTypeEnterprise
	}

	id := &Identity{
		ID:               p.ID,
		Email:            p.Email,
		FirstName:        p.Firstname,
		LastName:         p.Lastname,
		AccountType:      accountType,
		IsAdmin:          p.Roles.Admin,
		TwoFactor:        p.Channels(),
		WhatsAppNumber:   p.PhoneNumber,
		EmailAuthAddress: p.EmailAuthAddress,
		Phone:            p.Phone,
		Address:          p.Address,
		ProfilePicture:   p.ProfilePicture,
		WalletAmount:     p.WalletAmount,
	}
	if accountType == AccountTypeEnterprise {
		id.Enterprise = &Enterprise{
			Name:      p.EnterpriseName,
			Siret:     p.EnterpriseSiret,
			Tva:       p.EnterpriseTva,
			Siege:     p.EnterpriseSiege,
			Validated: bool(p.EnterpriseValid),
		}
	}
	return id, nil
}

// ParseIdentity 解析身份接口响应体
func ParseIdentity(body []byte) (*Identity, error) {
	var p IdentityPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformedPayload, err)
	}
	return p.Identity()
}

// LoginOutcome 登录接口结果；仅在未启用任何渠道时包含身份
type LoginOutcome struct {
	Channels Channels
	Identity *Identity
}

// ParseLoginOutcome 解析登录接口响应体
func ParseLoginOutcome(body []byte) (*LoginOutcome, error) {
	var p IdentityPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformedPayload, err)
	}

	outcome := &LoginOutcome{Channels: p.Channels()}
	if outcome.Channels.Any() {
		return outcome, nil
	}

	id, err := p.Identity()
	if err != nil {
		return nil, err
	}
	outcome.Identity = id
	return outcome, nil
}
