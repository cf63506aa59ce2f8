package page

// X.com DOM selectors
// These are isolated here because X changes their DOM frequently
// Update these when extraction breaks

const (
	// Content unit selectors
	TweetArticle   = `article[data-testid="tweet"]`
	TweetText      = `[data-testid="tweetText"]`
	TweetActionBar = `div[role="group"]`
	TweetAuthor    = `[data-testid="User-Name"]`
	TweetTimestamp = `time[datetime]`
	TweetLink      = `a[href*="/status/"]`
	TweetPhoto     = `[data-testid="tweetPhoto"]`
	TweetPhotoImg  = `[data-testid="tweetPhoto"] img`
	TweetPhotoBg   = `[data-testid="tweetPhoto"] [style*="background-image"]`

	// Login page indicators (for detecting auth state)
	HomeIndicator = `[data-testid="SideNav_NewTweet_Button"]`
	LoginForm     = `[data-testid="loginButton"]`
)

// Markers written by the overlay onto the live document.
const (
	AttrRef     = "data-stereotweet-ref"
	AttrSeen    = "data-stereotweet-seen"
	AttrUnitID  = "data-stereotweet-id"
	AttrTweetID = "data-tweet-id"
	AttrBusy    = "data-stereotweet-busy"

	TriggerClass     = "stereotweet-analyze-button"
	SurfaceIDPrefix  = "stereotweet-result-card-"
	SurfaceHostClass = "stereotweet-card-host"
)

// SurfaceID is the element id of a unit's result surface host.
func SurfaceID(unitID string) string {
	return SurfaceIDPrefix + unitID
}
