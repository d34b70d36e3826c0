package models

import (
	"database/sql/driver"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StringArray is a custom type for PostgreSQL text[] that implements Scanner and Valuer
type StringArray []string

// Scan implements the sql.Scanner interface for reading from database
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}

	str, ok := value.(string)
	if !ok {
		if bytes, ok := value.([]byte); ok {
			str = string(bytes)
		} else {
			*a = nil
			return nil
		}
	}

	str = strings.TrimPrefix(str, "{")
	str = strings.TrimSuffix(str, "}")

	if str == "" {
		*a = []string{}
		return nil
	}

	*a = strings.Split(str, ",")
	return nil
}

// Value implements the driver.Valuer interface for writing to database
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	if len(a) == 0 {
		return "{}", nil
	}
	return "{" + strings.Join(a, ",") + "}", nil
}

// User represents a threadline account
type User struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`

	PasswordHash *string `gorm:"type:text" json:"-"`

	// Profile data
	DisplayName string `json:"display_name"`
	Bio         string `gorm:"type:text" json:"bio"`
	AvatarURL   string `json:"avatar_url"`

	// Aggregate vote credit across the user's posts and comments,
	// adjusted transactionally by the vote ledger.
	Karma int `gorm:"default:0" json:"karma"`

	// GORM fields
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Community represents a topic-scoped space users can join and post into
type Community struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Title       string `json:"title"`
	Description string `gorm:"type:text" json:"description"`
	AvatarURL   string `json:"avatar_url"`
	BannerURL   string `json:"banner_url"`

	Topics StringArray `gorm:"type:text[]" json:"topics"`

	CreatedByID string `gorm:"not null;index" json:"created_by_id"`
	CreatedBy   User   `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`

	// Cached counter, maintained on join/unjoin.
	MembersCount int `gorm:"default:0" json:"members_count"`

	// GORM fields
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Membership links a user to a community. At most one row per (user, community)
// pair, enforced by the composite unique index.
type Membership struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string    `gorm:"not null;uniqueIndex:idx_memberships_user_community" json:"user_id"`
	User        User      `gorm:"foreignKey:UserID" json:"-"`
	CommunityID string    `gorm:"not null;uniqueIndex:idx_memberships_user_community" json:"community_id"`
	Community   Community `gorm:"foreignKey:CommunityID" json:"community,omitempty"`

	Role     string `gorm:"default:member" json:"role"`
	Favorite bool   `gorm:"default:false" json:"favorite"`

	CreatedAt time.Time `json:"joined_at"`
	UpdatedAt time.Time `json:"-"`
}

// Post represents a submission to a community. Body, URL and MediaURL are all
// optional and non-exclusive at the storage level; the client enforces
// "pick one type".
type Post struct {
	ID    string `gorm:"primaryKey;type:uuid" json:"id"`
	Title string `gorm:"not null" json:"title"`

	Body     string `gorm:"type:text" json:"body"`
	URL      string `json:"url"`
	MediaURL string `json:"media_url"`

	AuthorID string `gorm:"not null;index" json:"author_id"`
	Author   User   `gorm:"foreignKey:AuthorID" json:"author,omitempty"`

	CommunityID *string    `gorm:"type:uuid;index" json:"community_id,omitempty"`
	Community   *Community `gorm:"foreignKey:CommunityID" json:"community,omitempty"`

	// Cached signed vote sum. Must equal SUM(post_votes.value) for this post;
	// the vote ledger recomputes it in the same transaction as every vote write.
	Score int `gorm:"default:0" json:"score"`

	// Incremented when a comment is created. No decrement path exists since
	// comments are never deleted.
	CommentCount int `gorm:"default:0" json:"comment_count"`

	Votes []PostVote `gorm:"foreignKey:PostID" json:"-"`

	// GORM fields
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// PostVote records one user's current vote on a post. Value is +1 or -1; a
// cleared vote is a deleted row, never a stored zero. The composite unique
// index makes one-vote-per-user structural.
type PostVote struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	PostID string `gorm:"not null;uniqueIndex:idx_post_votes_post_user" json:"post_id"`
	UserID string `gorm:"not null;uniqueIndex:idx_post_votes_post_user" json:"user_id"`
	Value  int    `gorm:"not null" json:"value"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Comment represents a comment on a Post. ParentID is null for top-level
// comments; all ancestors belong to the same post.
type Comment struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	PostID string `gorm:"not null;index" json:"post_id"`
	Post   Post   `gorm:"foreignKey:PostID" json:"-"`

	AuthorID string `gorm:"not null;index" json:"author_id"`
	Author   User   `gorm:"foreignKey:AuthorID" json:"author,omitempty"`

	ParentID *string  `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	Parent   *Comment `gorm:"foreignKey:ParentID" json:"-"`

	Body  string `gorm:"type:text;not null" json:"body"`
	Depth int    `gorm:"default:0" json:"depth"`

	// Cached signed vote sum, maintained exactly like Post.Score.
	Score int `gorm:"default:0" json:"score"`

	Votes []CommentVote `gorm:"foreignKey:CommentID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CommentVote mirrors PostVote for comments.
type CommentVote struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	CommentID string `gorm:"not null;uniqueIndex:idx_comment_votes_comment_user" json:"comment_id"`
	UserID    string `gorm:"not null;uniqueIndex:idx_comment_votes_comment_user" json:"user_id"`
	Value     int    `gorm:"not null" json:"value"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SavedPost bookmarks a post for a user
type SavedPost struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"not null;uniqueIndex:idx_saved_posts_user_post" json:"user_id"`
	PostID string `gorm:"not null;uniqueIndex:idx_saved_posts_user_post" json:"post_id"`
	Post   Post   `gorm:"foreignKey:PostID" json:"post,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// HiddenPost removes a post from a user's feeds
type HiddenPost struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"not null;uniqueIndex:idx_hidden_posts_user_post" json:"user_id"`
	PostID string `gorm:"not null;uniqueIndex:idx_hidden_posts_user_post" json:"post_id"`
	Post   Post   `gorm:"foreignKey:PostID" json:"post,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// CustomFeed is a user-curated set of communities viewable as one feed
type CustomFeed struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"not null;index" json:"user_id"`
	User   User   `gorm:"foreignKey:UserID" json:"-"`

	Name        string `gorm:"not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	IsPrivate   bool   `gorm:"default:false" json:"is_private"`

	Communities []CustomFeedCommunity `gorm:"foreignKey:FeedID" json:"communities,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// CustomFeedCommunity is the join table between custom feeds and communities
type CustomFeedCommunity struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	FeedID      string    `gorm:"not null;uniqueIndex:idx_custom_feed_communities_unique" json:"feed_id"`
	CommunityID string    `gorm:"not null;uniqueIndex:idx_custom_feed_communities_unique" json:"community_id"`
	Community   Community `gorm:"foreignKey:CommunityID" json:"community,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName for custom feed communities
func (CustomFeedCommunity) TableName() string {
	return "custom_feed_communities"
}

// Message is a direct message between two users. Delivery transport beyond
// plain REST polling is out of scope for this service.
type Message struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	SenderID    string `gorm:"not null;index" json:"sender_id"`
	Sender      User   `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	RecipientID string `gorm:"not null;index" json:"recipient_id"`
	Recipient   User   `gorm:"foreignKey:RecipientID" json:"recipient,omitempty"`

	Body   string     `gorm:"type:text;not null" json:"body"`
	ReadAt *time.Time `json:"read_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate hooks for GORM

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = generateUUID()
	}
	return nil
}

func (c *Community) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = generateUUID()
	}
	return nil
}

func (m *Membership) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = generateUUID()
	}
	return nil
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = generateUUID()
	}
	return nil
}

func (v *PostVote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = generateUUID()
	}
	return nil
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = generateUUID()
	}
	return nil
}

func (v *CommentVote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = generateUUID()
	}
	return nil
}

func (s *SavedPost) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = generateUUID()
	}
	return nil
}

func (h *HiddenPost) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = generateUUID()
	}
	return nil
}

func (f *CustomFeed) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = generateUUID()
	}
	return nil
}

func (fc *CustomFeedCommunity) BeforeCreate(tx *gorm.DB) error {
	if fc.ID == "" {
		fc.ID = generateUUID()
	}
	return nil
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = generateUUID()
	}
	return nil
}

// Helper function for UUID generation
func generateUUID() string {
	return uuid.New().String()
}
