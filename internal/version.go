package internal

// SDKVersion is the current version of the data sync module. It is reported in the User-Agent header.
const SDKVersion = "1.0.0"
