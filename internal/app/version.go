package app

// AppName is used for the title, config and state directories.
const AppName = "onewordstory"

// AppVersion is set at build time with -ldflags "-X".
var AppVersion = "dev"
