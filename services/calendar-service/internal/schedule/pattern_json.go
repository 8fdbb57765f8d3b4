package schedule

import (
	"encoding/json"
	"fmt"
)

// patternEnvelope is the wire/storage form of RecurringPattern: common fields
// plus a type-discriminated scheduleData payload.
type patternEnvelope struct {
	ID           string          `json:"id,omitempty"`
	Type         PatternType     `json:"type"`
	Name         string          `json:"name"`
	StartDate    Date            `json:"startDate"`
	EndDate      *Date           `json:"endDate,omitempty"`
	IsActive     bool            `json:"isActive"`
	ScheduleData json.RawMessage `json:"scheduleData"`
}

// ScheduleData marshals only the variant payload, for storage in the
// type-discriminated schedule_data column.
func (p RecurringPattern) ScheduleData() ([]byte, error) {
	switch p.Type {
	case PatternWeekly:
		return json.Marshal(p.Weekly)
	case PatternBiweekly:
		return json.Marshal(p.Biweekly)
	case PatternMonthly:
		return json.Marshal(p.Monthly)
	case PatternSeasonal:
		return json.Marshal(p.Seasonal)
	default:
		return nil, fmt.Errorf("unknown pattern type %q", p.Type)
	}
}

// DecodeScheduleData fills the variant selected by p.Type from raw JSON.
func (p *RecurringPattern) DecodeScheduleData(data []byte) error {
	p.Weekly, p.Biweekly, p.Monthly, p.Seasonal = nil, nil, nil, nil
	switch p.Type {
	case PatternWeekly:
		p.Weekly = &WeeklyPattern{}
		return json.Unmarshal(data, p.Weekly)
	case PatternBiweekly:
		p.Biweekly = &BiweeklyPattern{}
		return json.Unmarshal(data, p.Biweekly)
	case PatternMonthly:
		p.Monthly = &MonthlyPattern{}
		return json.Unmarshal(data, p.Monthly)
	case PatternSeasonal:
		p.Seasonal = &SeasonalPattern{}
		return json.Unmarshal(data, p.Seasonal)
	default:
		return fmt.Errorf("unknown pattern type %q", p.Type)
	}
}

func (p RecurringPattern) MarshalJSON() ([]byte, error) {
	data, err := p.ScheduleData()
	if err != nil {
		return nil, err
	}
	return json.Marshal(patternEnvelope{
		ID:           p.ID,
		Type:         p.Type,
		Name:         p.Name,
		StartDate:    p.StartDate,
		EndDate:      p.EndDate,
		IsActive:     p.Active,
		ScheduleData: data,
	})
}

func (p *RecurringPattern) UnmarshalJSON(data []byte) error {
	var env patternEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	p.ID = env.ID
	p.Type = env.Type
	p.Name = env.Name
	p.StartDate = env.StartDate
	p.EndDate = env.EndDate
	p.Active = env.IsActive
	if len(env.ScheduleData) == 0 {
		return fmt.Errorf("pattern %q: scheduleData required", env.Name)
	}
	return p.DecodeScheduleData(env.ScheduleData)
}
