// Package metrics holds the closed catalog of published metric names and
// the value-coercion rules attached to their semantic types.
//
// The catalog is data, not behaviour: lookups are a single map probe and
// the tables are append-only. The development catalog is a superset of the
// production one.
package metrics

import "sort"

// SemanticType classifies the value carried by a metric.
type SemanticType int

const (
	TypeInt SemanticType = iota
	TypeFloat
	TypeText
	TypeJSONArray
	TypeJSONObject
	TypeTimestamp
)

func (t SemanticType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeText:
		return "str"
	case TypeJSONArray:
		return "list"
	case TypeJSONObject:
		return "dict"
	case TypeTimestamp:
		return "datetime"
	}
	return "unknown"
}

const (
	ReleaseTimestampParam = "releaseTimestamp"
	DateParam             = "date"
)

// Catalog maps metric names to their semantic types for one environment.
type Catalog struct {
	types map[string]SemanticType
	names []string // sorted, for deterministic closest-match suggestions
}

// NewCatalog builds the catalog for the given API_ENV value. DEVELOPMENT
// extends the production table; every other environment uses it as is.
func NewCatalog(environment string) *Catalog {
	types := make(map[string]SemanticType, len(baseTypes)+len(devOnlyTypes))
	for name, t := range baseTypes {
		types[name] = t
	}
	if environment == "DEVELOPMENT" {
		for name, t := range devOnlyTypes {
			types[name] = t
		}
	}

	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Catalog{types: types, names: names}
}

// TypeOf reports the semantic type of a metric and whether it exists.
func (c *Catalog) TypeOf(name string) (SemanticType, bool) {
	t, ok := c.types[name]
	return t, ok
}

func (c *Catalog) Contains(name string) bool {
	_, ok := c.types[name]
	return ok
}

// Names returns the catalog entries in sorted order. The slice is shared:
// callers must not mutate it.
func (c *Catalog) Names() []string {
	return c.names
}

// IsDateIdentifier reports whether name addresses a date axis rather than
// a stored metric. Both are accepted by latestBy.
func IsDateIdentifier(name string) bool {
	return name == DateParam || name == ReleaseTimestampParam
}

var baseTypes = map[string]SemanticType{
	"hash":          TypeText,
	"areaType":      TypeText,
	"areaName":      TypeText,
	"areaNameLower": TypeText,
	"areaCode":      TypeText,

	DateParam:             TypeTimestamp,
	ReleaseTimestampParam: TypeTimestamp,

	"covidOccupiedMVBeds":              TypeInt,
	"cumAdmissions":                    TypeInt,
	"cumCasesByPublishDate":            TypeInt,
	"cumPillarFourTestsByPublishDate":  TypeInt,
	"cumPillarOneTestsByPublishDate":   TypeInt,
	"cumPillarThreeTestsByPublishDate": TypeInt,
	"cumPillarTwoTestsByPublishDate":   TypeInt,
	"cumTestsByPublishDate":            TypeInt,
	"hospitalCases":                    TypeInt,
	"newAdmissions":                    TypeInt,
	"newCasesByPublishDate":            TypeInt,
	"newPillarFourTestsByPublishDate":  TypeInt,
	"newPillarOneTestsByPublishDate":   TypeInt,
	"newPillarThreeTestsByPublishDate": TypeInt,
	"newPillarTwoTestsByPublishDate":   TypeInt,
	"newTestsByPublishDate":            TypeInt,
	"plannedCapacityByPublishDate":     TypeInt,
	"newCasesBySpecimenDate":           TypeInt,
	"cumCasesBySpecimenDate":           TypeInt,

	"maleCases":          TypeJSONArray,
	"femaleCases":        TypeJSONArray,
	"cumAdmissionsByAge": TypeJSONArray,

	"femaleDeaths28Days": TypeInt,
	"maleDeaths28Days":   TypeInt,

	"changeInNewCasesBySpecimenDate":           TypeInt,
	"previouslyReportedNewCasesBySpecimenDate": TypeInt,

	"cumCasesBySpecimenDateRate": TypeFloat,
	"cumCasesByPublishDateRate":  TypeFloat,

	"newDeathsByDeathDate":            TypeInt,
	"newDeathsByDeathDateRate":        TypeFloat,
	"newDeathsByDeathDateRollingRate": TypeFloat,
	"newDeathsByDeathDateRollingSum":  TypeInt,
	"cumDeathsByDeathDate":            TypeInt,
	"cumDeathsByDeathDateRate":        TypeFloat,

	"newDeathsByPublishDate":     TypeInt,
	"cumDeathsByPublishDate":     TypeInt,
	"cumDeathsByPublishDateRate": TypeFloat,

	"newDeaths28DaysByDeathDate":            TypeInt,
	"newDeaths28DaysByDeathDateRate":        TypeFloat,
	"newDeaths28DaysByDeathDateRollingRate": TypeFloat,
	"newDeaths28DaysByDeathDateRollingSum":  TypeInt,
	"cumDeaths28DaysByDeathDate":            TypeInt,
	"cumDeaths28DaysByDeathDateRate":        TypeFloat,

	"newDeaths28DaysByPublishDate":     TypeInt,
	"cumDeaths28DaysByPublishDate":     TypeInt,
	"cumDeaths28DaysByPublishDateRate": TypeFloat,

	"newDeaths60DaysByDeathDate":            TypeInt,
	"newDeaths60DaysByDeathDateRate":        TypeFloat,
	"newDeaths60DaysByDeathDateRollingRate": TypeFloat,
	"newDeaths60DaysByDeathDateRollingSum":  TypeInt,
	"cumDeaths60DaysByDeathDate":            TypeInt,
	"cumDeaths60DaysByDeathDateRate":        TypeFloat,

	"newDeaths60DaysByPublishDate":     TypeInt,
	"cumDeaths60DaysByPublishDate":     TypeInt,
	"cumDeaths60DaysByPublishDateRate": TypeFloat,

	"newOnsDeathsByRegistrationDate":     TypeInt,
	"cumOnsDeathsByRegistrationDate":     TypeInt,
	"cumOnsDeathsByRegistrationDateRate": TypeFloat,

	"capacityPillarOneTwoFour":          TypeInt,
	"newPillarOneTwoTestsByPublishDate": TypeInt,
	"capacityPillarOneTwo":              TypeInt,
	"capacityPillarThree":               TypeInt,
	"capacityPillarOne":                 TypeInt,
	"capacityPillarTwo":                 TypeInt,
	"capacityPillarFour":                TypeInt,

	"cumPillarOneTwoTestsByPublishDate": TypeInt,

	"newPCRTestsByPublishDate":             TypeInt,
	"cumPCRTestsByPublishDate":             TypeInt,
	"plannedPCRCapacityByPublishDate":      TypeInt,
	"plannedAntibodyCapacityByPublishDate": TypeInt,
	"newAntibodyTestsByPublishDate":        TypeInt,
	"cumAntibodyTestsByPublishDate":        TypeInt,

	"alertLevel":                    TypeInt,
	"transmissionRateMin":           TypeFloat,
	"transmissionRateMax":           TypeFloat,
	"transmissionRateGrowthRateMin": TypeFloat,
	"transmissionRateGrowthRateMax": TypeFloat,

	"newLFDTests":   TypeInt,
	"cumLFDTests":   TypeInt,
	"newVirusTests": TypeInt,
	"cumVirusTests": TypeInt,

	"newCasesBySpecimenDateDirection":              TypeText,
	"newCasesBySpecimenDateChange":                 TypeInt,
	"newCasesBySpecimenDateChangePercentage":       TypeFloat,
	"newCasesBySpecimenDateRollingSum":             TypeInt,
	"newCasesBySpecimenDateRollingRate":            TypeFloat,
	"newCasesByPublishDateDirection":               TypeText,
	"newCasesByPublishDateChange":                  TypeInt,
	"newCasesByPublishDateChangePercentage":        TypeFloat,
	"newCasesByPublishDateRollingSum":              TypeInt,
	"newCasesByPublishDateRollingRate":             TypeFloat,
	"newAdmissionsDirection":                       TypeText,
	"newAdmissionsChange":                          TypeInt,
	"newAdmissionsChangePercentage":                TypeFloat,
	"newAdmissionsRollingSum":                      TypeInt,
	"newAdmissionsRollingRate":                     TypeFloat,
	"newDeaths28DaysByPublishDateDirection":        TypeText,
	"newDeaths28DaysByPublishDateChange":           TypeInt,
	"newDeaths28DaysByPublishDateChangePercentage": TypeFloat,
	"newDeaths28DaysByPublishDateRollingSum":       TypeInt,
	"newDeaths28DaysByPublishDateRollingRate":      TypeFloat,
	"newPCRTestsByPublishDateDirection":            TypeText,
	"newPCRTestsByPublishDateChange":               TypeInt,
	"newPCRTestsByPublishDateChangePercentage":     TypeFloat,
	"newPCRTestsByPublishDateRollingSum":           TypeInt,
	"newPCRTestsByPublishDateRollingRate":          TypeFloat,
	"newVirusTestsDirection":                       TypeText,
	"newVirusTestsChange":                          TypeInt,
	"newVirusTestsChangePercentage":                TypeFloat,
	"newVirusTestsRollingSum":                      TypeInt,
	"newVirusTestsRollingRate":                     TypeFloat,

	"newCasesByPublishDateAgeDemographics":      TypeJSONArray,
	"newCasesBySpecimenDateAgeDemographics":     TypeJSONArray,
	"newDeaths28DaysByDeathDateAgeDemographics": TypeJSONArray,

	"uniqueCasePositivityBySpecimenDateRollingSum": TypeFloat,
	"uniquePeopleTestedBySpecimenDateRollingSum":   TypeInt,

	"newDailyNsoDeathsByDeathDate": TypeInt,
	"cumDailyNsoDeathsByDeathDate": TypeInt,

	"cumWeeklyNsoDeathsByRegDate":         TypeInt,
	"cumWeeklyNsoDeathsByRegDateRate":     TypeFloat,
	"newWeeklyNsoDeathsByRegDate":         TypeInt,
	"cumWeeklyNsoCareHomeDeathsByRegDate": TypeInt,
	"newWeeklyNsoCareHomeDeathsByRegDate": TypeInt,

	"newPeopleReceivingFirstDose":  TypeInt,
	"cumPeopleReceivingFirstDose":  TypeInt,
	"newPeopleReceivingSecondDose": TypeInt,
	"cumPeopleReceivingSecondDose": TypeInt,

	"cumPeopleVaccinatedFirstDoseByPublishDate":          TypeInt,
	"cumPeopleVaccinatedSecondDoseByPublishDate":         TypeInt,
	"cumPeopleVaccinatedFirstDoseByVaccinationDate":      TypeInt,
	"newPeopleVaccinatedFirstDoseByPublishDate":          TypeInt,
	"cumPeopleVaccinatedCompleteByPublishDate":           TypeInt,
	"newPeopleVaccinatedCompleteByPublishDate":           TypeInt,
	"newPeopleVaccinatedSecondDoseByPublishDate":         TypeInt,
	"weeklyPeopleVaccinatedFirstDoseByVaccinationDate":   TypeInt,
	"weeklyPeopleVaccinatedSecondDoseByVaccinationDate":  TypeInt,
	"cumPeopleVaccinatedSecondDoseByVaccinationDate":     TypeInt,

	"cumVaccinationFirstDoseUptakeByPublishDatePercentage":  TypeFloat,
	"cumVaccinationSecondDoseUptakeByPublishDatePercentage": TypeFloat,
	"cumVaccinationCompleteCoverageByPublishDatePercentage": TypeFloat,
}

// devOnlyTypes are published in DEVELOPMENT ahead of production release.
var devOnlyTypes = map[string]SemanticType{
	"changeInCumCasesBySpecimenDate": TypeInt,
	"cumPeopleTestedBySpecimenDate":  TypeInt,
	"newPeopleTestedBySpecimenDate":  TypeInt,

	"covidOccupiedNIVBeds":          TypeInt,
	"covidOccupiedOSBeds":           TypeInt,
	"covidOccupiedOtherBeds":        TypeInt,
	"nonCovidOccupiedMVBeds":        TypeInt,
	"nonCovidOccupiedNIVBeds":       TypeInt,
	"nonCovidOccupiedOSBeds":        TypeInt,
	"nonCovidOccupiedOtherBeds":     TypeInt,
	"suspectedCovidOccupiedMVBeds":  TypeInt,
	"suspectedCovidOccupiedNIVBeds": TypeInt,
	"suspectedCovidOccupiedOSBeds":  TypeInt,
	"suspectedCovidOccupiedOtherBeds": TypeInt,
	"totalBeds":                     TypeInt,
	"totalMVBeds":                   TypeInt,
	"totalNIVBeds":                  TypeInt,
	"totalOSBeds":                   TypeInt,
	"totalOtherBeds":                TypeInt,
	"unoccupiedMVBeds":              TypeInt,
	"unoccupiedNIVBeds":             TypeInt,
	"unoccupiedOSBeds":              TypeInt,
	"unoccupiedOtherBeds":           TypeInt,

	"cumDischarges":      TypeInt,
	"cumDischargesByAge": TypeJSONArray,
	"newDischarges":      TypeInt,
	"newAdmissionsByAge": TypeJSONArray,
	"cumDischargesRate":  TypeFloat,
	"cumAdmissionsRate":  TypeFloat,

	"cumNegativesBySpecimenDate": TypeInt,
	"newNegativesBySpecimenDate": TypeInt,
	"femaleNegatives":            TypeJSONArray,
	"maleNegatives":              TypeJSONArray,
	"malePeopleTested":           TypeJSONArray,
	"femalePeopleTested":         TypeJSONArray,

	"cumPeopleTestedByPublishDate":           TypeInt,
	"newPeopleTestedByPublishDate":           TypeInt,
	"cumPeopleTestedByPublishDateRate":       TypeFloat,
	"cumPillarOnePeopleTestedByPublishDate":  TypeInt,
	"newPillarOnePeopleTestedByPublishDate":  TypeInt,
	"cumPillarTwoPeopleTestedByPublishDate":  TypeInt,
	"newPillarTwoPeopleTestedByPublishDate":  TypeInt,
	"newPillarOneTwoFourTestsByPublishDate":  TypeInt,
	"plannedPillarFourCapacityByPublishDate": TypeInt,
	"plannedPillarOneCapacityByPublishDate":  TypeInt,
	"plannedPillarThreeCapacityByPublishDate": TypeInt,
	"plannedPillarTwoCapacityByPublishDate":  TypeInt,

	"previouslyReportedCumCasesBySpecimenDate": TypeInt,
	"newCasesBySpecimenDateRate":               TypeFloat,

	"femaleDeaths60Days": TypeInt,
	"maleDeaths60Days":   TypeInt,

	"newOnsCareHomeDeathsByRegistrationDate": TypeInt,
	"cumOnsCareHomeDeathsByRegistrationDate": TypeInt,

	"newCasesPCROnlyBySpecimenDateRollingSum":           TypeInt,
	"newCasesLFDOnlyBySpecimenDateRollingRate":          TypeFloat,
	"newCasesLFDOnlyBySpecimenDate":                     TypeInt,
	"newCasesLFDConfirmedPCRBySpecimenDate":             TypeInt,
	"newCasesLFDConfirmedPCRBySpecimenDateRollingRate":  TypeFloat,
	"cumCasesPCROnlyBySpecimenDate":                     TypeInt,
	"newCasesPCROnlyBySpecimenDateRollingRate":          TypeFloat,
	"newCasesLFDOnlyBySpecimenDateRollingSum":           TypeInt,
	"cumCasesLFDConfirmedPCRBySpecimenDate":             TypeInt,
	"cumCasesLFDOnlyBySpecimenDate":                     TypeInt,
	"newCasesPCROnlyBySpecimenDate":                     TypeInt,
	"newCasesLFDConfirmedPCRBySpecimenDateRollingSum":   TypeInt,
}
