package catalog

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/z0nyx/Akidzuki-CLI/internal/database"
	"github.com/z0nyx/Akidzuki-CLI/internal/logutil"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("profile not found")
	ErrExists   = errors.New("profile already exists")
)

// Sort orders accepted by Filter.SortBy.
const (
	SortByName     = "name"
	SortByHost     = "host"
	SortByLastUsed = "last_used"
	SortByGroup    = "group"
)

// SortOrders lists the sort orders in the order the menu cycles through them.
var SortOrders = []string{SortByName, SortByHost, SortByLastUsed, SortByGroup}

// Filter narrows and orders List results. Zero value lists everything by name.
type Filter struct {
	Text          string // case-insensitive substring of name or address
	Group         string
	FavoritesOnly bool
	SortBy        string
}

// Catalog is the profile store.
type Catalog struct {
	db    *gorm.DB
	nowFn func() time.Time
}

func New(db *gorm.DB) *Catalog {
	return &Catalog{db: db, nowFn: time.Now}
}

func (c *Catalog) all() ([]database.Profile, error) {
	var profiles []database.Profile
	if err := c.db.Order("id").Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}

// List returns the profiles matching f in the requested order.
func (c *Catalog) List(f Filter) ([]database.Profile, error) {
	profiles, err := c.all()
	if err != nil {
		return nil, err
	}

	text := strings.ToLower(f.Text)
	out := profiles[:0]
	for _, p := range profiles {
		if text != "" && !strings.Contains(strings.ToLower(p.Name), text) &&
			!strings.Contains(strings.ToLower(p.Address()), text) {
			continue
		}
		if f.Group != "" && p.Group != f.Group {
			continue
		}
		if f.FavoritesOnly && !p.Favorite {
			continue
		}
		out = append(out, p)
	}

	sortProfiles(out, f.SortBy)
	return out, nil
}

func sortProfiles(profiles []database.Profile, by string) {
	switch by {
	case SortByHost:
		sort.SliceStable(profiles, func(i, j int) bool {
			return strings.ToLower(profiles[i].Address()) < strings.ToLower(profiles[j].Address())
		})
	case SortByLastUsed:
		sort.SliceStable(profiles, func(i, j int) bool {
			a, b := profiles[i].LastUsed, profiles[j].LastUsed
			if a == nil || b == nil {
				return a != nil && b == nil
			}
			return a.After(*b)
		})
	case SortByGroup:
		sort.SliceStable(profiles, func(i, j int) bool {
			if profiles[i].Group != profiles[j].Group {
				return profiles[i].Group < profiles[j].Group
			}
			return strings.ToLower(profiles[i].Name) < strings.ToLower(profiles[j].Name)
		})
	default:
		sort.SliceStable(profiles, func(i, j int) bool {
			return strings.ToLower(profiles[i].Name) < strings.ToLower(profiles[j].Name)
		})
	}
}

func (c *Catalog) Get(name string) (*database.Profile, error) {
	var p database.Profile
	err := c.db.Where("name = ?", name).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", name, err)
	}
	return &p, nil
}

// Add validates and stores a new profile. Missing port and user take their
// defaults (22, root).
func (c *Catalog) Add(p *database.Profile) error {
	normalize(p)
	if err := validate(p); err != nil {
		return err
	}

	var count int64
	if err := c.db.Model(&database.Profile{}).Where("name = ?", p.Name).Count(&count).Error; err != nil {
		return fmt.Errorf("check profile %s: %w", p.Name, err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %s", ErrExists, p.Name)
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = c.nowFn()
	}
	if err := c.db.Create(p).Error; err != nil {
		return fmt.Errorf("create profile %s: %w", p.Name, err)
	}
	log.Printf("[catalog] added profile %s (%s@%s:%d)",
		logutil.SanitizeForLog(p.Name), logutil.SanitizeForLog(p.User),
		logutil.SanitizeForLog(p.Address()), p.Port)
	return nil
}

// Update replaces the profile stored under oldName with p, which may carry a
// new name.
func (c *Catalog) Update(oldName string, p *database.Profile) error {
	normalize(p)
	if err := validate(p); err != nil {
		return err
	}

	existing, err := c.Get(oldName)
	if err != nil {
		return err
	}
	if p.Name != oldName {
		var count int64
		c.db.Model(&database.Profile{}).Where("name = ?", p.Name).Count(&count)
		if count > 0 {
			return fmt.Errorf("%w: %s", ErrExists, p.Name)
		}
	}

	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt
	if err := c.db.Save(p).Error; err != nil {
		return fmt.Errorf("update profile %s: %w", oldName, err)
	}
	log.Printf("[catalog] updated profile %s -> %s", logutil.SanitizeForLog(oldName), logutil.SanitizeForLog(p.Name))
	return nil
}

func (c *Catalog) Delete(name string) error {
	res := c.db.Where("name = ?", name).Delete(&database.Profile{})
	if res.Error != nil {
		return fmt.Errorf("delete profile %s: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	log.Printf("[catalog] deleted profile %s", logutil.SanitizeForLog(name))
	return nil
}

// MarkUsed stamps the profile's last-used time with the current time.
func (c *Catalog) MarkUsed(name string) error {
	now := c.nowFn()
	res := c.db.Model(&database.Profile{}).Where("name = ?", name).Update("last_used", &now)
	if res.Error != nil {
		return fmt.Errorf("mark profile %s used: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// ToggleFavorite flips the favorite flag and returns the new value.
func (c *Catalog) ToggleFavorite(name string) (bool, error) {
	p, err := c.Get(name)
	if err != nil {
		return false, err
	}
	p.Favorite = !p.Favorite
	if err := c.db.Model(p).Update("favorite", p.Favorite).Error; err != nil {
		return false, fmt.Errorf("toggle favorite %s: %w", name, err)
	}
	log.Printf("[catalog] favorite %s -> %v", logutil.SanitizeForLog(name), p.Favorite)
	return p.Favorite, nil
}

// Groups returns the distinct non-empty group names, sorted.
func (c *Catalog) Groups() ([]string, error) {
	var groups []string
	err := c.db.Model(&database.Profile{}).
		Where("group_name <> ''").
		Distinct().Order("group_name").
		Pluck("group_name", &groups).Error
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// Recent returns up to limit profiles that have been used, newest first.
func (c *Catalog) Recent(limit int) ([]database.Profile, error) {
	var profiles []database.Profile
	err := c.db.Where("last_used IS NOT NULL").
		Order("last_used DESC").Limit(limit).
		Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("list recent profiles: %w", err)
	}
	return profiles, nil
}

func normalize(p *database.Profile) {
	p.Name = strings.TrimSpace(p.Name)
	p.Host = strings.TrimSpace(p.Host)
	p.HostName = strings.TrimSpace(p.HostName)
	if p.HostName == p.Host {
		p.HostName = ""
	}
	if p.Port == 0 {
		p.Port = 22
	}
	if p.User == "" {
		p.User = "root"
	}
}

func validate(p *database.Profile) error {
	if p.Name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}
	if err := ValidateHost(p.Address()); err != nil {
		return err
	}
	if err := ValidatePort(p.Port); err != nil {
		return err
	}
	return ValidateUser(p.User)
}
