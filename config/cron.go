package config

// CronJob pairs a cron schedule with a job function.
type CronJob struct {
	Schedule string
	Job      func(...string)
}

// CronJobs maps job names to jobs. Built-in jobs register themselves via
// cron.Register from init(); this map is the hook for ad-hoc additions.
var CronJobs = map[string]CronJob{}
