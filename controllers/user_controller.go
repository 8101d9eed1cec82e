package controllers

import (
	"net/http"

	"github.com/F1H444/si-kalori-sub000/services"
	"github.com/F1H444/si-kalori-sub000/utils"

	"github.com/gin-gonic/gin"
)

type UserController struct {
	Svc *services.ProfileService
}

func NewUserController(svc *services.ProfileService) *UserController {
	return &UserController{Svc: svc}
}

func (h *UserController) GetProfile(c *gin.Context) {
	uid, _ := userIDFromCtx(c)
	p, err := h.Svc.GetProfile(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *UserController) UpdateProfile(c *gin.Context) {
	uid, _ := userIDFromCtx(c)
	var input services.ProfileUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}
	p, err := h.Svc.UpdateProfile(c.Request.Context(), uid, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *UserController) CompleteOnboarding(c *gin.Context) {
	uid, _ := userIDFromCtx(c)
	var input services.OnboardingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}
	p, err := h.Svc.CompleteOnboarding(c.Request.Context(), uid, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "onboarding completed", "profile": p})
}

type previewInput struct {
	WeightKg      float64 `json:"weight_kg"`
	HeightCm      float64 `json:"height_cm"`
	AgeYears      int     `json:"age_years"`
	Gender        string  `json:"gender"`
	ActivityLevel string  `json:"activity_level"`
	Goal          string  `json:"goal"`
}

// PreviewMetrics serves POST /metrics/calculate without storing anything.
func (h *UserController) PreviewMetrics(c *gin.Context) {
	var in previewInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	gender, err := utils.ParseGender(in.Gender)
	if err != nil {
		respondError(c, err)
		return
	}
	level, err := utils.ParseActivityLevel(in.ActivityLevel)
	if err != nil {
		respondError(c, err)
		return
	}
	goal, err := utils.ParseGoal(in.Goal)
	if err != nil {
		respondError(c, err)
		return
	}

	m, err := h.Svc.PreviewMetrics(utils.BiometricProfile{
		WeightKg:      in.WeightKg,
		HeightCm:      in.HeightCm,
		AgeYears:      in.AgeYears,
		Gender:        gender,
		ActivityLevel: level,
		Goal:          goal,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"metrics": m, "bmi_category": utils.BMICategory(m.BMI)})
}
