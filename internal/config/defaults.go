package config

import (
	"time"

	"horse.fit/news-gatherer/internal/textnorm"
	"horse.fit/news-gatherer/internal/urlcanon"
)

// MaxTimeWindow caps NG_TIME_WINDOW at one week.
const MaxTimeWindow = 168 * time.Hour

var (
	DefaultStopWords      = textnorm.DefaultStopWords
	DefaultTrackingParams = urlcanon.DefaultTrackingParams
)
