package dscore

import "strconv"

// Status is the numeric failure code surfaced to callers.
type Status int

const (
	StatusQueryFailed               Status = 300
	StatusNoSuitableConnector       Status = 301
	StatusMaintenanceFreeConnection Status = 302
	StatusImpossibleDataProvider    Status = 303
	StatusConnectionRefused         Status = 304
	StatusServerDown                Status = 305
	StatusStateNotEstablished       Status = 306
	StatusExtensionNotLoaded        Status = 307
	StatusWrongDsnString            Status = 308
	StatusUnknownSourceType         Status = 309
	StatusDatabaseNameMissing       Status = 310
	StatusSourceTypeNotDefined      Status = 311
	StatusUnknownContractorName     Status = 312
	StatusMissingArgumentDSN        Status = 313
	StatusNoConfiguration           Status = 314
	StatusConnectionNotInit         Status = 315
	StatusStopAutocommitFailure     Status = 316
	StatusTimeoutNotChanged         Status = 317
	StatusSetCharsetNameFailure     Status = 318
	StatusUnknownOption             Status = 319
	StatusMakeDirFailure            Status = 320
)

var statusNames = map[Status]string{
	StatusQueryFailed:               "QueryFailed",
	StatusNoSuitableConnector:       "NoSuitableConnector",
	StatusMaintenanceFreeConnection: "MaintenanceFreeConnection",
	StatusImpossibleDataProvider:    "ImpossibleDataProvider",
	StatusConnectionRefused:         "ConnectionRefused",
	StatusServerDown:                "ServerDown",
	StatusStateNotEstablished:       "StateNotEstablished",
	StatusExtensionNotLoaded:        "ExtensionNotLoaded",
	StatusWrongDsnString:            "WrongDsnString",
	StatusUnknownSourceType:         "UnknownSourceType",
	StatusDatabaseNameMissing:       "DatabaseNameMissing",
	StatusSourceTypeNotDefined:      "SourceTypeNotDefined",
	StatusUnknownContractorName:     "UnknownContractorName",
	StatusMissingArgumentDSN:        "MissingArgumentDSN",
	StatusNoConfiguration:           "NoConfiguration",
	StatusConnectionNotInit:         "ConnectionNotInit",
	StatusStopAutocommitFailure:     "StopAutocommitFailure",
	StatusTimeoutNotChanged:         "TimeoutNotChanged",
	StatusSetCharsetNameFailure:     "SetCharsetNameFailure",
	StatusUnknownOption:             "UnknownOption",
	StatusMakeDirFailure:            "MakeDirFailure",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Status(" + strconv.Itoa(int(s)) + ")"
}

// Error lets a Status act as a sentinel for errors.Is.
func (s Status) Error() string { return s.String() }

// Kind groups statuses into the descriptor/config/connection/state/query families.
func (s Status) Kind() string {
	switch s {
	case StatusWrongDsnString, StatusUnknownSourceType, StatusDatabaseNameMissing,
		StatusSourceTypeNotDefined, StatusMissingArgumentDSN:
		return "descriptor"
	case StatusNoConfiguration, StatusUnknownOption, StatusUnknownContractorName,
		StatusMaintenanceFreeConnection, StatusImpossibleDataProvider:
		return "config"
	case StatusNoSuitableConnector, StatusConnectionRefused, StatusServerDown,
		StatusExtensionNotLoaded, StatusConnectionNotInit, StatusMakeDirFailure,
		StatusStopAutocommitFailure, StatusTimeoutNotChanged:
		return "connection"
	case StatusStateNotEstablished, StatusSetCharsetNameFailure:
		return "state"
	case StatusQueryFailed:
		return "query"
	}
	return "unknown"
}
