package consts

const (
	PlatformChzzk   = "chzzk"
	PlatformAfreeca = "afreeca"
)

const (
	LiveStatusOffline = 0
	LiveStatusLive    = 1
)
