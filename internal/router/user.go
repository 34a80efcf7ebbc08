package router

import "github.com/gin-gonic/gin"

func (r *Router) profileRoutes(rg *gin.RouterGroup) {
	profile := rg.Group("/profile")
	profile.Use(r.auth.RequireAuth())
	{
		profile.POST("", r.handlers.Profile.CreateProfile)
		profile.GET("", r.handlers.Profile.GetProfile)
		profile.PUT("", r.handlers.Profile.UpdateProfile)
		profile.POST("/phone/verify", r.handlers.Profile.VerifyPhone)
		profile.POST("/phone/change", r.handlers.Profile.ChangePhone)
		profile.GET("/followed-portfolios", r.handlers.Profile.FollowedPortfolios)
	}
}

func (r *Router) userRoutes(rg *gin.RouterGroup) {
	users := rg.Group("/users")
	{
		users.GET("/check/email", r.handlers.Check.CheckEmail)
		users.GET("/check/username", r.handlers.Check.CheckUsername)
		users.GET("/check/phone", r.handlers.Check.CheckPhone)

		users.GET("/search", r.handlers.Profile.SearchUsers)
		users.GET("/:identity", r.handlers.Profile.GetUser)
		users.GET("/:identity/followers", r.handlers.Profile.ListFollowers)
		users.GET("/:identity/following", r.handlers.Profile.ListFollowing)

		protected := users.Group("")
		protected.Use(r.auth.RequireAuth())
		{
			protected.POST("/:identity/follow", r.handlers.Profile.Follow)
			protected.DELETE("/:identity/follow", r.handlers.Profile.Unfollow)
			protected.GET("/:identity/follow-status", r.handlers.Profile.FollowStatus)
		}
	}
}
