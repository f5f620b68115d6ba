package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// jsonFloat encodes NaN and infinities as null.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func (f *jsonFloat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = jsonFloat(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*f = jsonFloat(v)
	return nil
}

type recordJSON struct {
	Date          string    `json:"date"`
	Precipitation jsonFloat `json:"p_mm_day"`
	PET           jsonFloat `json:"pet_mm_day"`
	Streamflow    jsonFloat `json:"q_mm_day"`
	Temperature   jsonFloat `json:"t_c"`
	DisplayDate   string    `json:"display_date"`
}

func (r CatchmentRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		Date:          r.Date.Format(DateLayout),
		Precipitation: jsonFloat(r.Precipitation),
		PET:           jsonFloat(r.PET),
		Streamflow:    jsonFloat(r.Streamflow),
		Temperature:   jsonFloat(r.Temperature),
		DisplayDate:   r.DisplayDate,
	})
}

type resultJSON struct {
	Catchment     string    `json:"catchment"`
	Model         string    `json:"model"`
	Date          string    `json:"date"`
	DisplayDate   string    `json:"display_date"`
	SimulatedQ    jsonFloat `json:"q_sim_mm_day"`
	ActualET      jsonFloat `json:"et_mm_day"`
	ObservedQ     jsonFloat `json:"q_obs_mm_day"`
	Precipitation jsonFloat `json:"p_mm_day"`
	ProcessedAt   time.Time `json:"processed_at"`
}

func (r DailyResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		Catchment:     r.Catchment,
		Model:         r.Model,
		Date:          r.Date.Format(DateLayout),
		DisplayDate:   r.DisplayDate,
		SimulatedQ:    jsonFloat(r.SimulatedQ),
		ActualET:      jsonFloat(r.ActualET),
		ObservedQ:     jsonFloat(r.ObservedQ),
		Precipitation: jsonFloat(r.Precipitation),
		ProcessedAt:   r.ProcessedAt,
	})
}

// UnmarshalJSON decodes the form written by MarshalJSON; null numbers become NaN.
func (r *DailyResult) UnmarshalJSON(b []byte) error {
	var v resultJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	day, err := time.Parse(DateLayout, v.Date)
	if err != nil {
		return err
	}
	*r = DailyResult{
		Catchment:     v.Catchment,
		Model:         v.Model,
		Date:          day,
		DisplayDate:   v.DisplayDate,
		SimulatedQ:    float64(v.SimulatedQ),
		ActualET:      float64(v.ActualET),
		ObservedQ:     float64(v.ObservedQ),
		Precipitation: float64(v.Precipitation),
		ProcessedAt:   v.ProcessedAt,
	}
	return nil
}
