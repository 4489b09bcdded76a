package version

var FillFromBuildInfo = fillFromBuildInfo
