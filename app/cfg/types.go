package cfg

type Cfg struct {
	// Storage configuration
	DBPath   string
	CacheDir string
	FeedsDir string

	// Application configuration
	Port              string
	SchedulerInterval int
	APIAccessKey      string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
