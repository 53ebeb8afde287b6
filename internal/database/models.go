package database

import "time"

// Profile is one saved connection target.
type Profile struct {
	ID           uint       `gorm:"primaryKey;autoIncrement" json:"-" yaml:"-"`
	Name         string     `gorm:"uniqueIndex;not null" json:"name" yaml:"name"`
	Host         string     `gorm:"not null" json:"host" yaml:"host"`
	HostName     string     `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	Port         int        `gorm:"not null;default:22" json:"port" yaml:"port"`
	User         string     `gorm:"not null;default:root" json:"user" yaml:"user"`
	IdentityFile string     `json:"identity_file,omitempty" yaml:"identity_file,omitempty"`
	Group        string     `gorm:"column:group_name;index" json:"group,omitempty" yaml:"group,omitempty"`
	Favorite     bool       `gorm:"not null;default:false" json:"favorite,omitempty" yaml:"favorite,omitempty"`
	LastUsed     *time.Time `json:"last_used,omitempty" yaml:"last_used,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"-" yaml:"-"`
}

// Address returns the host actually dialled: HostName when set, otherwise Host.
func (p *Profile) Address() string {
	if p.HostName != "" {
		return p.HostName
	}
	return p.Host
}

// SecretKey is the credential store key for the profile, name@host.
func (p *Profile) SecretKey() string {
	return p.Name + "@" + p.Host
}

type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `gorm:"not null" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
